package model

type UserRole string

const (
	Student UserRole = "student"
	Teacher UserRole = "teacher"
	Admin   UserRole = "admin"
)

func (r UserRole) Valid() bool {
	switch r {
	case Student, Teacher, Admin:
		return true
	}
	return false
}

// CanViewOthers reports whether the role may read another learner's data.
func (r UserRole) CanViewOthers() bool {
	return r == Teacher || r == Admin
}
