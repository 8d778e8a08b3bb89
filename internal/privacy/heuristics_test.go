package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchField(t *testing.T) {
	tests := []struct {
		field string
		value string
		want  Category
		match bool
	}{
		{"name", "Dhruv Chauhan", CategoryPersonName, true},
		{"full_name", "Ana Maria Lee", CategoryPersonName, true},
		{"name", "Dhruv", CategoryNone, false},
		{"email", "not-an-address", CategoryEmail, true},
		{"upi_id", "user@bank.upi", CategoryHandle, true},
		{"passport", "K12", CategoryPassport, true},
		{"phone", "+91 98765", CategoryPhone, true},
		{"aadhar", "1234", CategoryNationalID, true},
		{"city", "Pune", CategoryNone, false},
		{"Name", "Dhruv Chauhan", CategoryNone, false},
	}

	for _, tt := range tests {
		t.Run(tt.field+"/"+tt.value, func(t *testing.T) {
			got, ok := MatchField(tt.field, tt.value)
			assert.Equal(t, tt.match, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQuasiIdentifierFieldsIsACopy(t *testing.T) {
	fields := QuasiIdentifierFields()
	fields[0] = "changed"
	assert.Equal(t, []string{"name", "email", "address", "ip_address", "device_id"}, QuasiIdentifierFields())
}
