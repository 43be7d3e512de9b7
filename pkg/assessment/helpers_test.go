package assessment

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/fieldops/pkg/audit"
	"github.com/platinummonkey/fieldops/pkg/authz"
)

var testNow = time.Date(2025, 5, 1, 10, 30, 0, 0, time.UTC)

func ptr[T any](v T) *T {
	return &v
}

func mustDate(t *testing.T, s string) Date {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func newTestValidator(bookings BookingChecker) *Validator {
	return NewValidator(DefaultConfig(), bookings, WithClock(func() time.Time { return testNow }))
}

func validPayload(t *testing.T) *Payload {
	return &Payload{
		Title:              ptr("Roof leak inspection"),
		ServiceType:        ptr(ServiceGeneral),
		ClientName:         ptr("Aminah Yusof"),
		ClientPhone:        ptr("012-345 6789"),
		ClientEmail:        ptr("Aminah@Example.com"),
		LocationAddress:    ptr("123 Main St"),
		LocationPostalCode: ptr("50450"),
		AssessmentDate:     ptr(mustDate(t, "2025-06-01")),
		EstimatedDuration:  ptr(90),
	}
}

func storedAssessment(t *testing.T, status Status) *Assessment {
	completion := 0
	switch status {
	case StatusCompleted:
		completion = 100
	case StatusInProgress, StatusPaused:
		completion = 40
	}
	return &Assessment{
		ID:                   7,
		CompanyID:            1,
		CreatedBy:            ptr(int64(10)),
		Title:                "Roof leak inspection",
		ServiceType:          ServiceGeneral,
		Status:               status,
		CompletionPercentage: completion,
		ClientName:           "Aminah Yusof",
		LocationAddress:      "123 Main St",
		AssessmentDate:       ptr(mustDate(t, "2025-06-01")),
	}
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

// withJPEGComment inserts a COM segment right after the SOI marker
func withJPEGComment(data []byte, comment string) []byte {
	n := len(comment) + 2
	segment := append([]byte{0xFF, 0xFE, byte(n >> 8), byte(n)}, comment...)
	out := append([]byte{}, data[:2]...)
	out = append(out, segment...)
	return append(out, data[2:]...)
}

func photoFile(name, contentType string, data []byte) PhotoFile {
	return PhotoFile{
		Filename:    name,
		ContentType: contentType,
		Size:        int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

type failingBookings struct{}

func (failingBookings) FindBookingConflict(context.Context, int64, string, Date, int64) (*Assessment, error) {
	return nil, errors.New("connection refused")
}

type memoryPhotoStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemoryPhotoStore() *memoryPhotoStore {
	return &memoryPhotoStore{blobs: make(map[string][]byte)}
}

func (s *memoryPhotoStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = data
	return nil
}

func (s *memoryPhotoStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	return nil
}

func (s *memoryPhotoStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs)
}

type recordingAudit struct {
	mu     sync.Mutex
	events []*audit.AuditEvent
}

func (r *recordingAudit) Log(_ context.Context, e *audit.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingAudit) Close() error { return nil }

func (r *recordingAudit) types() []audit.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]audit.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.EventType
	}
	return out
}

type recordingMetrics struct {
	decisions   []string
	failures    []string
	transitions []string
}

func (m *recordingMetrics) RecordDecision(resource, action, outcome, gate string) {
	m.decisions = append(m.decisions, resource+":"+action+"="+outcome+"/"+gate)
}

func (m *recordingMetrics) RecordValidationFailure(entity string, categories []string) {
	for _, c := range categories {
		m.failures = append(m.failures, entity+"/"+c)
	}
}

func (m *recordingMetrics) RecordTransition(from, to string) {
	m.transitions = append(m.transitions, from+"->"+to)
}

var (
	manager  = &authz.Actor{ID: 1, CompanyID: 1, Roles: []authz.Role{authz.RoleCompanyManager}}
	execE    = &authz.Actor{ID: 10, CompanyID: 1, Roles: []authz.Role{authz.RoleSalesExecutive}}
	execF    = &authz.Actor{ID: 11, CompanyID: 1, Roles: []authz.Role{authz.RoleSalesExecutive}}
	outsider = &authz.Actor{ID: 20, CompanyID: 2, Roles: []authz.Role{authz.RoleCompanyManager}}
)
