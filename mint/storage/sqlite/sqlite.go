package sqlite

import (
	"database/sql"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/elnosh/nutsplit/cashu"
	"github.com/elnosh/nutsplit/crypto"
	"github.com/elnosh/nutsplit/mint/storage"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	sqlite3 "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrations embed.FS

type SQLiteDB struct {
	db *sql.DB
}

func InitSQLite(path string) (*SQLiteDB, error) {
	dbpath := filepath.Join(path, "mint.sqlite.db")
	db, err := sql.Open("sqlite3", dbpath)
	if err != nil {
		return nil, err
	}

	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return nil, err
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, fmt.Sprintf("sqlite3://%s", dbpath))
	if err != nil {
		return nil, err
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &SQLiteDB{db: db}, nil
}

func (sqlite *SQLiteDB) Close() {
	sqlite.db.Close()
}

func (sqlite *SQLiteDB) SaveSeed(seed []byte) error {
	hexSeed := hex.EncodeToString(seed)

	_, err := sqlite.db.Exec(`
	INSERT INTO seed (id, seed) VALUES (?, ?)
	`, "id", hexSeed)

	return err
}

func (sqlite *SQLiteDB) GetSeed() ([]byte, error) {
	var hexSeed string
	row := sqlite.db.QueryRow("SELECT seed FROM seed WHERE id = ?", "id")
	err := row.Scan(&hexSeed)
	if err != nil {
		return nil, err
	}

	seed, err := hex.DecodeString(hexSeed)
	if err != nil {
		return nil, err
	}

	return seed, nil
}

func (sqlite *SQLiteDB) SaveKeyset(keyset storage.DBKeyset) error {
	_, err := sqlite.db.Exec(`
		INSERT INTO keysets (id, unit, active, derivation_path_idx) VALUES (?, ?, ?, ?)
	`, keyset.Id, keyset.Unit, keyset.Active, keyset.DerivationPathIdx)

	return err
}

func (sqlite *SQLiteDB) GetKeysets() ([]storage.DBKeyset, error) {
	keysets := []storage.DBKeyset{}

	rows, err := sqlite.db.Query("SELECT id, unit, active, derivation_path_idx FROM keysets")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var keyset storage.DBKeyset
		err := rows.Scan(
			&keyset.Id,
			&keyset.Unit,
			&keyset.Active,
			&keyset.DerivationPathIdx,
		)
		if err != nil {
			return nil, err
		}
		keysets = append(keysets, keyset)
	}

	return keysets, rows.Err()
}

func (sqlite *SQLiteDB) UpdateKeysetActive(id string, active bool) error {
	result, err := sqlite.db.Exec("UPDATE keysets SET active = ? WHERE id = ?", active, id)
	if err != nil {
		return err
	}

	count, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if count != 1 {
		return errors.New("keyset was not updated")
	}
	return nil
}

func (sqlite *SQLiteDB) SaveProofs(proofs cashu.Proofs) error {
	tx, err := sqlite.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare("INSERT INTO proofs (y, amount, keyset_id, secret, c) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, proof := range proofs {
		Y := crypto.HashToCurve([]byte(proof.Secret))
		Yhex := hex.EncodeToString(Y.SerializeCompressed())

		if _, err := stmt.Exec(Yhex, proof.Amount, proof.Id, proof.Secret, proof.C); err != nil {
			tx.Rollback()
			var sqliteErr sqlite3.Error
			if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
				return storage.ErrProofAlreadySpent
			}
			return err
		}
	}

	return tx.Commit()
}

func (sqlite *SQLiteDB) DeleteProofs(Ys []string) error {
	if len(Ys) == 0 {
		return nil
	}

	query := `DELETE FROM proofs WHERE y in (?` + strings.Repeat(",?", len(Ys)-1) + `)`
	args := make([]any, len(Ys))
	for i, y := range Ys {
		args[i] = y
	}

	_, err := sqlite.db.Exec(query, args...)
	return err
}

func (sqlite *SQLiteDB) GetProofsUsed(Ys []string) ([]storage.DBProof, error) {
	proofs := []storage.DBProof{}
	if len(Ys) == 0 {
		return proofs, nil
	}

	query := `SELECT y, amount, keyset_id, secret, c FROM proofs WHERE y in (?` + strings.Repeat(",?", len(Ys)-1) + `)`
	args := make([]any, len(Ys))
	for i, y := range Ys {
		args[i] = y
	}

	rows, err := sqlite.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var proof storage.DBProof
		err := rows.Scan(
			&proof.Y,
			&proof.Amount,
			&proof.Id,
			&proof.Secret,
			&proof.C,
		)
		if err != nil {
			return nil, err
		}

		proofs = append(proofs, proof)
	}

	return proofs, rows.Err()
}

func (sqlite *SQLiteDB) SaveInvoice(invoice storage.Invoice) error {
	_, err := sqlite.db.Exec(
		`INSERT INTO invoices (payment_hash, payment_request, amount, issued, expiry)
		VALUES (?, ?, ?, ?, ?)`,
		invoice.PaymentHash,
		invoice.PaymentRequest,
		invoice.Amount,
		invoice.Issued,
		invoice.Expiry,
	)

	return err
}

func (sqlite *SQLiteDB) GetInvoice(paymentHash string) (storage.Invoice, error) {
	row := sqlite.db.QueryRow(`SELECT payment_hash, payment_request, amount, issued, expiry
		FROM invoices WHERE payment_hash = ?`, paymentHash)

	var invoice storage.Invoice
	err := row.Scan(
		&invoice.PaymentHash,
		&invoice.PaymentRequest,
		&invoice.Amount,
		&invoice.Issued,
		&invoice.Expiry,
	)
	if err != nil {
		return storage.Invoice{}, err
	}

	return invoice, nil
}

func (sqlite *SQLiteDB) UpdateInvoiceIssued(paymentHash string, issued bool) error {
	result, err := sqlite.db.Exec("UPDATE invoices SET issued = ? WHERE payment_hash = ?", issued, paymentHash)
	if err != nil {
		return err
	}

	count, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if count != 1 {
		return errors.New("invoice was not updated")
	}
	return nil
}
