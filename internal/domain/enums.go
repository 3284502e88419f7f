package domain

// PageType is the closed set of page classifications for medical bills.
type PageType string

const (
	PageTypeBillDetail    PageType = "Bill Detail"
	PageTypePharmacy      PageType = "Pharmacy"
	PageTypeFinalBill     PageType = "Final Bill"
	PageTypeInvestigation PageType = "Investigation"
	PageTypeConsultation  PageType = "Consultation"
	PageTypeRoomCharges   PageType = "Room Charges"
	PageTypeServices      PageType = "Services"
	PageTypeProcedure     PageType = "Procedure"
)

// PageTypes lists every valid page type.
var PageTypes = []PageType{
	PageTypeBillDetail,
	PageTypePharmacy,
	PageTypeFinalBill,
	PageTypeInvestigation,
	PageTypeConsultation,
	PageTypeRoomCharges,
	PageTypeServices,
	PageTypeProcedure,
}

// Valid reports whether t is a member of the closed enumeration.
func (t PageType) Valid() bool {
	for _, v := range PageTypes {
		if t == v {
			return true
		}
	}
	return false
}

// DocumentFormat represents the detected input document format.
type DocumentFormat string

const (
	FormatPDF   DocumentFormat = "pdf"
	FormatImage DocumentFormat = "image"
)
