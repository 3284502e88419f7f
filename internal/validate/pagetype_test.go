package validate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"medbill/internal/domain"
	"medbill/internal/validate"
)

func TestNormalizePageType(t *testing.T) {
	cases := map[string]domain.PageType{
		"Pharmacy":             domain.PageTypePharmacy,
		"pharmacy register":    domain.PageTypePharmacy,
		"Medicine Bill":        domain.PageTypePharmacy,
		"Final Bill":           domain.PageTypeFinalBill,
		"Bill Summary":         domain.PageTypeFinalBill,
		"TOTAL CHARGES":        domain.PageTypeFinalBill,
		"Bill Detail":          domain.PageTypeBillDetail,
		"Detailed Charges":     domain.PageTypeBillDetail,
		"Investigation":        domain.PageTypeInvestigation,
		"Lab Report":           domain.PageTypeInvestigation,
		"Pathology Charges":    domain.PageTypeInvestigation,
		"Radiology":            domain.PageTypeInvestigation,
		"Consultation":         domain.PageTypeConsultation,
		"Doctor Fees":          domain.PageTypeConsultation,
		"Room Charges":         domain.PageTypeRoomCharges,
		"Accommodation":        domain.PageTypeRoomCharges,
		"Bed Charges":          domain.PageTypeRoomCharges,
		"Service Charges":      domain.PageTypeServices,
		"Procedure":            domain.PageTypeProcedure,
		"Surgery Notes":        domain.PageTypeProcedure,
		"Operation Theatre":    domain.PageTypeProcedure,
		"":                     domain.PageTypeBillDetail,
		"something unexpected": domain.PageTypeBillDetail,
	}
	for in, want := range cases {
		assert.Equal(t, want, validate.NormalizePageType(in), "input %q", in)
	}
}

func TestNormalizePageType_MultiWordPrecedence(t *testing.T) {
	// "final bill" must win over the bare "bill"/"detail" fragments, and
	// "room charges" over "service".
	assert.Equal(t, domain.PageTypeFinalBill, validate.NormalizePageType("Final Bill Detail"))
	assert.Equal(t, domain.PageTypeRoomCharges, validate.NormalizePageType("Room Charges and Services"))
}
