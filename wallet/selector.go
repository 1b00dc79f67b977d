package wallet

import (
	"fmt"

	"github.com/elnosh/nutsplit/cashu"
)

// Selection is the result of selecting proofs for an amount.
type Selection struct {
	// proofs accumulated before reaching the target
	SendProofs cashu.Proofs
	// the proof that went over the target, if any
	ChangeProofs cashu.Proofs
	Target       uint64
	Total        uint64
}

// NeedsSplit reports whether the selected proofs went over the target
// and have to be split before sending.
func (s Selection) NeedsSplit() bool {
	return s.Total > s.Target
}

// Proofs returns every proof the selection consumed.
func (s Selection) Proofs() cashu.Proofs {
	proofs := make(cashu.Proofs, 0, len(s.SendProofs)+len(s.ChangeProofs))
	proofs = append(proofs, s.SendProofs...)
	return append(proofs, s.ChangeProofs...)
}

// SelectProofs goes over the proofs once in the order given, adding them
// until the target amount is reached. The proof that goes over the
// target is put in ChangeProofs and selection stops there.
func SelectProofs(amount uint64, proofs cashu.Proofs) (Selection, error) {
	if amount == 0 {
		return Selection{}, fmt.Errorf("%w: amount must be greater than zero", ErrAmount)
	}

	selection := Selection{Target: amount}
	for _, proof := range proofs {
		total, err := cashu.CheckedAdd(selection.Total, proof.Amount)
		if err != nil {
			return Selection{}, fmt.Errorf("%w: %v", ErrAmountMismatch, err)
		}
		selection.Total = total

		if total > amount {
			selection.ChangeProofs = append(selection.ChangeProofs, proof)
			return selection, nil
		}

		selection.SendProofs = append(selection.SendProofs, proof)
		if total == amount {
			return selection, nil
		}
	}

	return Selection{}, fmt.Errorf("%w: have %v but need %v", ErrInsufficientFunds, selection.Total, amount)
}
