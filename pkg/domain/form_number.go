package domain

import "fmt"

// FormNumber identifies one page of the fixed qualification sequence.
// Valid values are 1 through 8; validity is enforced at parse time.
type FormNumber int

const (
	FormCompletedProjects   FormNumber = 1
	FormOngoingProjects     FormNumber = 2
	FormProjectProfiles     FormNumber = 3
	FormManagementPersonnel FormNumber = 4
	FormPersonnelResumes    FormNumber = 5
	FormManpower            FormNumber = 6
	FormEquipmentTools      FormNumber = 7
	FormQuestionnaire       FormNumber = 8

	// FormCount is the number of forms in the qualification sequence.
	FormCount = 8
)

// ParseFormNumber validates an integer form number.
func ParseFormNumber(n int) (FormNumber, error) {
	if n < 1 || n > FormCount {
		return 0, fmt.Errorf("invalid form number %d: must be between 1 and %d", n, FormCount)
	}
	return FormNumber(n), nil
}

func (n FormNumber) Int() int { return int(n) }

func (n FormNumber) String() string { return fmt.Sprintf("%d", int(n)) }

// Valid reports whether the number falls inside the fixed sequence.
func (n FormNumber) Valid() bool { return n >= 1 && n <= FormCount }

// AllFormNumbers returns the fixed sequence in order.
func AllFormNumbers() []FormNumber {
	out := make([]FormNumber, 0, FormCount)
	for i := 1; i <= FormCount; i++ {
		out = append(out, FormNumber(i))
	}
	return out
}
