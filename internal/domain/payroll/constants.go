package payroll

type MaritalStatus string

const (
	MaritalSingle   MaritalStatus = "single"
	MaritalMarried  MaritalStatus = "married"
	MaritalDivorced MaritalStatus = "divorced"
	MaritalWidowed  MaritalStatus = "widowed"
)

func (m MaritalStatus) Valid() bool {
	switch m {
	case MaritalSingle, MaritalMarried, MaritalDivorced, MaritalWidowed:
		return true
	}
	return false
}

type ContractType string

const (
	ContractPermanent  ContractType = "permanent"
	ContractFixedTerm  ContractType = "fixed_term"
	ContractInterim    ContractType = "interim"
	ContractInternship ContractType = "internship"
	ContractFreelance  ContractType = "freelance"
)

func (c ContractType) Valid() bool {
	switch c {
	case ContractPermanent, ContractFixedTerm, ContractInterim, ContractInternship, ContractFreelance:
		return true
	}
	return false
}

// SocialSecurityCovered reports whether the contract falls under the CNSS
// regime. Freelancers invoice and are declared elsewhere.
func (c ContractType) SocialSecurityCovered() bool {
	return c.Valid() && c != ContractFreelance
}
