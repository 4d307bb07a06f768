package domain

// Canonical violation labels, in rule order.
const (
	ViolationNoCard    = "Không mang thẻ học viên"
	ViolationLate      = "Đi học muộn"
	ViolationNoUniform = "Không mặc áo đoàn"
	ViolationSandals   = "Mang dép lê"
	ViolationMotorbike = "Đi xe trên 50cc"
)

var canonicalViolations = []string{
	ViolationNoCard,
	ViolationLate,
	ViolationNoUniform,
	ViolationSandals,
	ViolationMotorbike,
}

// CanonicalViolations returns the five labels in rule order.
func CanonicalViolations() []string {
	out := make([]string, len(canonicalViolations))
	copy(out, canonicalViolations)
	return out
}

func IsCanonicalViolation(label string) bool {
	for _, v := range canonicalViolations {
		if v == label {
			return true
		}
	}
	return false
}
