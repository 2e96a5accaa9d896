package models

type Card struct {
	ID             string `json:"id"`
	AccountID      string `json:"account_id"`
	Number         string `json:"number"`
	ExpirationDate string `json:"expiration_date"`
	// CardholderName is the user-provided name to display on card face
	CardholderName string `json:"cardholder_name,omitempty"`
	// LinkedAccountIDs are extra accounts reachable with the card, in link order.
	LinkedAccountIDs []string `json:"linked_account_ids,omitempty"`
	PINHash          []byte   `json:"-"`
}

// AccountIDs returns the primary account followed by the linked ones.
func (c *Card) AccountIDs() []string {
	ids := make([]string, 0, 1+len(c.LinkedAccountIDs))
	ids = append(ids, c.AccountID)
	for _, id := range c.LinkedAccountIDs {
		if id != c.AccountID {
			ids = append(ids, id)
		}
	}
	return ids
}
