package wizard

import (
	"github.com/shopspring/decimal"

	"bizreg/internal/draft/models"
)

// Summary is the review-step export of everything entered.
type Summary struct {
	DraftID        string            `json:"draft_id,omitempty"`
	Step           int               `json:"step"`
	Jurisdiction   string            `json:"jurisdiction"`
	Fee            decimal.Decimal   `json:"fee"`
	EntityName     string            `json:"entity_name"`
	EntityCategory string            `json:"entity_category"`
	Owners         []SummaryOwner    `json:"owners"`
	Address        SummaryAddress    `json:"address"`
	Documents      []SummaryDocument `json:"documents"`
}

type SummaryOwner struct {
	FullName   string `json:"full_name"`
	Percentage string `json:"percentage"`
}

type SummaryAddress struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	Region     string `json:"region"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country,omitempty"`
}

type SummaryDocument struct {
	Slot     string `json:"slot"`
	FileName string `json:"file_name"`
	Location string `json:"location,omitempty"`
	Kind     string `json:"kind"`
	Pending  bool   `json:"pending,omitempty"`
}

// Summary returns the accumulated fields with the fee resolved.
func (c *Controller) Summary() Summary {
	st := c.state
	out := Summary{
		Step:           int(st.Step),
		Jurisdiction:   st.Jurisdiction,
		Fee:            models.CoerceFee(st.JurisdictionFee),
		EntityName:     st.EntityName,
		EntityCategory: st.EntityCategory,
		Owners:         make([]SummaryOwner, 0, len(st.Owners)),
		Address: SummaryAddress{
			Street:     st.Address.Street,
			City:       st.Address.City,
			Region:     st.Address.Region,
			PostalCode: st.Address.PostalCode,
			Country:    st.Address.Country,
		},
		Documents: []SummaryDocument{},
	}
	if !st.DraftID.IsNil() {
		out.DraftID = st.DraftID.String()
	}
	for _, o := range st.Owners {
		out.Owners = append(out.Owners, SummaryOwner{FullName: o.FullName, Percentage: o.Percentage})
	}
	if st.Primary != nil {
		out.Documents = append(out.Documents, storedDoc(models.SlotPrimary, *st.Primary))
	}
	if st.PendingPrimary != nil {
		out.Documents = append(out.Documents, pendingDoc(models.SlotPrimary, st.PendingPrimary.FileName))
	}
	for _, doc := range st.Supplementary {
		out.Documents = append(out.Documents, storedDoc(models.SlotSupplementary, doc))
	}
	for _, up := range st.PendingSupplementary {
		out.Documents = append(out.Documents, pendingDoc(models.SlotSupplementary, up.FileName))
	}
	return out
}

func storedDoc(slot models.Slot, doc Document) SummaryDocument {
	return SummaryDocument{
		Slot:     string(slot),
		FileName: doc.FileName,
		Location: doc.Location,
		Kind:     string(doc.Kind),
	}
}

func pendingDoc(slot models.Slot, name string) SummaryDocument {
	return SummaryDocument{
		Slot:     string(slot),
		FileName: name,
		Kind:     string(models.KindOf(name)),
		Pending:  true,
	}
}
