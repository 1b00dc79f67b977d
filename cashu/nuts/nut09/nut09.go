// Package nut09 contains structs as defined in [NUT-09]
//
// [NUT-09]: https://github.com/cashubtc/nuts/blob/main/09.md
package nut09

type MintInfo struct {
	Name            string     `json:"name"`
	Pubkey          string     `json:"pubkey"`
	Version         string     `json:"version"`
	Description     string     `json:"description"`
	LongDescription string     `json:"description_long,omitempty"`
	Contact         [][]string `json:"contact,omitempty"`
	Nuts            []string   `json:"nuts"`
	Motd            string     `json:"motd,omitempty"`
	Parameter       Parameter  `json:"parameter"`
}

type Parameter struct {
	PegOutOnly bool `json:"peg_out_only"`
}
