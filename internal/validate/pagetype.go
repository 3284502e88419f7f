package validate

import (
	"strings"

	"medbill/internal/domain"
)

// pageTypeSynonyms maps label fragments onto the closed enumeration.
// Order matters: multi-word keys are checked before their substrings.
var pageTypeSynonyms = []struct {
	fragment string
	pageType domain.PageType
}{
	{"final bill", domain.PageTypeFinalBill},
	{"bill detail", domain.PageTypeBillDetail},
	{"room charges", domain.PageTypeRoomCharges},
	{"pharmacy", domain.PageTypePharmacy},
	{"medicine", domain.PageTypePharmacy},
	{"drug", domain.PageTypePharmacy},
	{"final", domain.PageTypeFinalBill},
	{"summary", domain.PageTypeFinalBill},
	{"total", domain.PageTypeFinalBill},
	{"detail", domain.PageTypeBillDetail},
	{"investigation", domain.PageTypeInvestigation},
	{"laboratory", domain.PageTypeInvestigation},
	{"lab", domain.PageTypeInvestigation},
	{"pathology", domain.PageTypeInvestigation},
	{"radiology", domain.PageTypeInvestigation},
	{"consultation", domain.PageTypeConsultation},
	{"doctor", domain.PageTypeConsultation},
	{"room", domain.PageTypeRoomCharges},
	{"accommodation", domain.PageTypeRoomCharges},
	{"bed", domain.PageTypeRoomCharges},
	{"service", domain.PageTypeServices},
	{"procedure", domain.PageTypeProcedure},
	{"surgery", domain.PageTypeProcedure},
	{"operation", domain.PageTypeProcedure},
}

// NormalizePageType maps a raw model label onto the closed page-type set.
// Matching is case-insensitive substring; anything unrecognized degrades
// to Bill Detail.
func NormalizePageType(label string) domain.PageType {
	lower := strings.ToLower(strings.TrimSpace(label))
	if lower == "" {
		return domain.PageTypeBillDetail
	}
	for _, syn := range pageTypeSynonyms {
		if strings.Contains(lower, syn.fragment) {
			return syn.pageType
		}
	}
	return domain.PageTypeBillDetail
}
