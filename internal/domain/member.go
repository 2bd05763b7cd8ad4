package domain

// Member is a participant of a poll. Exactly one member per poll is the host.
type Member struct {
	ID             int64  `json:"id"`
	PollID         int64  `json:"-"`
	Name           string `json:"name"`
	PasswordDigest string `json:"-"`
	Host           bool   `json:"host"`
}

// MemberView is a member as shown in the poll view: attendance keyed by date
// key and decoded auxiliary answers keyed by field code.
type MemberView struct {
	ID         int64                  `json:"id"`
	Name       string                 `json:"name"`
	Host       bool                   `json:"host"`
	Attendance map[string]bool        `json:"attendance"`
	AuxInfo    map[string]interface{} `json:"auxInfo"`
}

// Auth modes accepted by the poll authorization middleware
const (
	AuthModePassword = "PASS"
	AuthModeOTT      = "OTT"
)

// Credentials identify a member acting on a poll
type Credentials struct {
	UserID int64  `json:"id"`
	Auth   string `json:"auth"`
	Key    string `json:"key"`
}
