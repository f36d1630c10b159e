package models

import "time"

// Permission levels of an account. The ordering is total:
// banned accounts rank below normal ones, admins above.
const (
	PermissionBanned = -1
	PermissionNormal = 0
	PermissionAdmin  = 1
)

type User struct {
	UID        int64
	Email      string
	Nickname   string
	Score      int
	PassHash   []byte
	Permission int
	Verified   bool
	IP         string
	RegisterAt time.Time
}

type Player struct {
	PID  int64
	UID  int64
	Name string
}

// Message is an outbound mail job, either dispatched directly over SMTP
// or published to the mail queue.
type Message struct {
	Email   string `json:"to"`
	Link    string `json:"link"`
	Purpose string `json:"purpose"`
}
