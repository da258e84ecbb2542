package device

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	goFleet "github.com/MrEthical07/goFleet"
)

// Status is the reported state of a device.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusError   Status = "error"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusOnline, StatusOffline, StatusError:
		return true
	}
	return false
}

// Device is the stored record. TenantID serializes as "organization".
type Device struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Status        Status     `json:"status"`
	TenantID      string     `json:"organization"`
	LastHeartbeat *time.Time `json:"lastHeartbeat,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// NewDevice is the create request body.
type NewDevice struct {
	Name   string `json:"name"`
	Status Status `json:"status,omitempty"`
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Name          *string    `json:"name,omitempty"`
	Status        *Status    `json:"status,omitempty"`
	LastHeartbeat *time.Time `json:"lastHeartbeat,omitempty"`
}

// ErrInvalid marks request bodies that fail decoding or validation. It
// matches goFleet.ErrValidationFailed.
var ErrInvalid = fmt.Errorf("%w: invalid device data", goFleet.ErrValidationFailed)

const maxNameLength = 200

// DecodeNew reads and validates a create body. The default status is offline.
func DecodeNew(r io.Reader) (NewDevice, error) {
	var nd NewDevice
	if err := decodeStrict(r, &nd); err != nil {
		return NewDevice{}, err
	}
	nd.Name = strings.TrimSpace(nd.Name)
	if nd.Status == "" {
		nd.Status = StatusOffline
	}
	if err := validateName(nd.Name); err != nil {
		return NewDevice{}, err
	}
	if !nd.Status.Valid() {
		return NewDevice{}, fmt.Errorf("%w: unknown status %q", ErrInvalid, nd.Status)
	}
	return nd, nil
}

// DecodePatch reads and validates an update body. Unknown fields and empty
// patches are rejected.
func DecodePatch(r io.Reader) (Patch, error) {
	var p Patch
	if err := decodeStrict(r, &p); err != nil {
		return Patch{}, err
	}
	if p.Name == nil && p.Status == nil && p.LastHeartbeat == nil {
		return Patch{}, fmt.Errorf("%w: empty update", ErrInvalid)
	}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if err := validateName(name); err != nil {
			return Patch{}, err
		}
		p.Name = &name
	}
	if p.Status != nil && !p.Status.Valid() {
		return Patch{}, fmt.Errorf("%w: unknown status %q", ErrInvalid, *p.Status)
	}
	return p, nil
}

// Apply returns d with p applied and UpdatedAt set to now.
func (p Patch) Apply(d Device, now time.Time) Device {
	if p.Name != nil {
		d.Name = *p.Name
	}
	if p.Status != nil {
		d.Status = *p.Status
	}
	if p.LastHeartbeat != nil {
		hb := p.LastHeartbeat.UTC()
		d.LastHeartbeat = &hb
	}
	d.UpdatedAt = now
	return d
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name too long", ErrInvalid)
	}
	return nil
}

func decodeStrict(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", ErrInvalid)
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", ErrInvalid)
	}
	return nil
}

// Encode renders devices as a JSON array. A nil slice encodes as [].
func Encode(devices []Device) ([]byte, error) {
	if devices == nil {
		devices = []Device{}
	}
	return json.Marshal(devices)
}
