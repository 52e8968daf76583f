package types

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// EntityType kind of certificate owner. It selects validity, extensions and signer.
type EntityType int

const (
	TypeNone EntityType = iota
	TypeRoot
	TypeServer
	TypeClient
)

var (
	entityTypeToStr = map[EntityType]string{}
	strToEntityType = map[string]EntityType{}
)

func init() {
	for typ, str := range map[EntityType]string{
		TypeNone:   "",
		TypeRoot:   "root",
		TypeServer: "server",
		TypeClient: "client",
	} {
		entityTypeToStr[typ] = str
		strToEntityType[str] = typ
	}

	// alias used by the old tooling
	strToEntityType["ca"] = TypeRoot
}

func (t EntityType) String() string               { return entityTypeToStr[t] }
func (t EntityType) MarshalJSON() ([]byte, error) { return json.Marshal(t.String()) }
func (t *EntityType) UnmarshalJSON(data []byte) error {
	var s string

	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	parsed, err := ParseEntityType(s)
	if err != nil {
		return err
	}
	*t = parsed

	return nil
}

// ParseEntityType parse entity type name; root, server, client
func ParseEntityType(s string) (EntityType, error) {
	typ, ok := strToEntityType[strings.ToLower(strings.TrimSpace(s))]
	if !ok || typ == TypeNone {
		return TypeNone, errors.Errorf("unknown entity type: %q", s)
	}
	return typ, nil
}

type Status int

const (
	StatusNone Status = iota
	StatusActive
	StatusRevoked
)

var (
	statusToStr = map[Status]string{}
	strToStatus = map[string]Status{}
)

func init() {
	for status, str := range map[Status]string{
		StatusNone:    "",
		StatusActive:  "active",
		StatusRevoked: "revoked",
	} {
		statusToStr[status] = str
		strToStatus[str] = status
	}
}

func (st Status) String() string               { return statusToStr[st] }
func (st Status) MarshalJSON() ([]byte, error) { return json.Marshal(st.String()) }
func (st *Status) UnmarshalJSON(data []byte) error {
	var s string

	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	*st = strToStatus[s]

	return nil
}

func StrToStatus(s string) Status { return strToStatus[s] }

// Certificate issued certificate
type Certificate struct {
	Name      string // file name in store, without extension
	Type      EntityType
	CN        string
	Serial    int64
	NotBefore time.Time
	NotAfter  time.Time
	Cert      []byte // Certificate as PEM
	Key       []byte // Private key as PEM, may be encrypted
}

// Revocation revoked certificate record
type Revocation struct {
	Name      string
	Serial    int64
	RevokedAt time.Time
}
