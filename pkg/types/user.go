package types

// UserRole represents the different user roles in the system
type UserRole string

const (
	RolePatient   UserRole = "patient"
	RoleDoctor    UserRole = "doctor"
	RoleSecretary UserRole = "secretary"
	RoleAdmin     UserRole = "admin"
)

// User represents a system user
type User struct {
	ID       string   `json:"_id"`
	Name     string   `json:"name"`
	Email    string   `json:"email,omitempty"`
	Role     UserRole `json:"role"`
	ClinicID string   `json:"clinic_id,omitempty"`
}

// UserClaims represents JWT token claims
type UserClaims struct {
	UserID   string   `json:"user_id"`
	Name     string   `json:"name"`
	Role     UserRole `json:"role"`
	ClinicID string   `json:"clinic_id,omitempty"`
}

// Clinic is a clinic owned by an admin user
type Clinic struct {
	ID      string `json:"_id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	AdminID string `json:"admin_id,omitempty"`
}

// CreateClinicRequest is the body of POST /clinics
type CreateClinicRequest struct {
	Name    string `json:"name" validate:"required,min=2,max=120"`
	Address string `json:"address" validate:"required,max=255"`
}

// Pong is the response of GET /ping
type Pong struct {
	Message string `json:"message"`
}

// MessageResponse is the body returned by write endpoints
type MessageResponse struct {
	Message string `json:"message"`
}
