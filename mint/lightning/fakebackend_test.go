package lightning

import (
	"context"
	"testing"

	decodepay "github.com/nbd-wtf/ln-decodepay"
)

func TestFakeBackend(t *testing.T) {
	fb := &FakeBackend{Fee: 10, PaidFee: 4, ManualSettle: true}

	invoice, err := fb.CreateInvoice(2100)
	if err != nil {
		t.Fatalf("error creating invoice: %v", err)
	}

	bolt11, err := decodepay.Decodepay(invoice.PaymentRequest)
	if err != nil {
		t.Fatalf("error decoding invoice: %v", err)
	}
	if bolt11.MSatoshi != 2100*1000 {
		t.Fatalf("expected '%v' but got '%v'", 2100*1000, bolt11.MSatoshi)
	}
	if bolt11.PaymentHash != invoice.PaymentHash {
		t.Fatalf("expected '%v' but got '%v'", invoice.PaymentHash, bolt11.PaymentHash)
	}

	status, err := fb.InvoiceStatus(invoice.PaymentHash)
	if err != nil {
		t.Fatal(err)
	}
	if status.Settled {
		t.Fatal("expected invoice not settled")
	}

	if err := fb.SettleInvoice(invoice.PaymentHash); err != nil {
		t.Fatal(err)
	}
	status, _ = fb.InvoiceStatus(invoice.PaymentHash)
	if !status.Settled {
		t.Fatal("expected invoice settled")
	}

	if _, err := fb.InvoiceStatus("unknownhash"); err == nil {
		t.Fatal("expected error for unknown invoice")
	}

	payment, err := fb.SendPayment(context.Background(), invoice.PaymentRequest, 2100)
	if err != nil {
		t.Fatalf("error sending payment: %v", err)
	}
	if payment.PaymentStatus != Succeeded || payment.Preimage != FakePreimage {
		t.Fatalf("unexpected payment status '%v'", payment)
	}
	if payment.Fee != 4 {
		t.Fatalf("expected fee '4' but got '%v'", payment.Fee)
	}

	if _, err := fb.SendPayment(context.Background(), "notaninvoice", 1); err == nil {
		t.Fatal("expected error paying invalid invoice")
	}
}
