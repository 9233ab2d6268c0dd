// Package room resolves the room a session attempt joins.
package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
)

// Intent selects between provisioning a new room and joining a known one.
type Intent struct {
	create bool
	roomID domain.RoomID
}

func CreateNew() Intent { return Intent{create: true} }

func JoinExisting(id domain.RoomID) Intent { return Intent{roomID: id} }

func (i Intent) Creates() bool { return i.create }

func (i Intent) RoomID() domain.RoomID { return i.roomID }

func (i Intent) String() string {
	if i.create {
		return "create"
	}
	return "join:" + string(i.roomID)
}

type Options struct {
	Endpoint string
	Timeout  time.Duration
	Client   *http.Client
	Now      func() time.Time
}

type Resolver struct {
	endpoint   string
	timeout    time.Duration
	httpClient *http.Client
	now        func() time.Time
}

func NewResolver(opts Options) *Resolver {
	r := &Resolver{
		endpoint:   opts.Endpoint,
		timeout:    opts.Timeout,
		httpClient: opts.Client,
		now:        opts.Now,
	}
	if r.timeout <= 0 {
		r.timeout = 10 * time.Second
	}
	if r.httpClient == nil {
		r.httpClient = &http.Client{}
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

type createResponse struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}

// Resolve returns a fresh Room for the intent. JoinExisting never touches the
// network; whether the room exists is checked when joining.
func (r *Resolver) Resolve(ctx context.Context, sessionID string, cred *domain.Credential, intent Intent) (*domain.Room, error) {
	if cred.Expired(r.now()) {
		return nil, &core.RoomError{Code: core.RoomCredentialExpired}
	}
	if !intent.Creates() {
		if intent.RoomID() == "" {
			return nil, &core.RoomError{Code: core.RoomNotFound, Message: "empty room id"}
		}
		return domain.NewRoom(intent.RoomID(), domain.RoomJoined, r.now()), nil
	}
	if !cred.Scope.Has(domain.PermCreate) {
		return nil, &core.RoomError{Code: core.RoomCreationRejected, Message: "credential lacks create scope"}
	}

	id, err := r.create(ctx, cred)
	if err != nil {
		log.Warn().Err(err).Str("module", "room").Str("session_id", sessionID).Msg("room creation failed")
		return nil, err
	}
	log.Info().Str("module", "room").Str("session_id", sessionID).Str("room_id", string(id)).Msg("room created")
	return domain.NewRoom(id, domain.RoomCreated, r.now()), nil
}

func (r *Resolver) create(ctx context.Context, cred *domain.Credential) (domain.RoomID, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, nil)
	if err != nil {
		return "", &core.RoomError{Code: core.RoomUnavailable, Err: err}
	}
	req.Header.Set("Authorization", cred.Value)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", &core.RoomError{Code: core.RoomUnavailable, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &core.RoomError{Code: core.RoomUnavailable, Err: err}
	}
	var cr createResponse
	_ = json.Unmarshal(raw, &cr)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", &core.RoomError{Code: core.RoomNotFound, Message: cr.Message}
	case resp.StatusCode == http.StatusUnauthorized && cr.Message == "token expired":
		return "", &core.RoomError{Code: core.RoomCredentialExpired, Message: cr.Message}
	case resp.StatusCode >= 500:
		return "", &core.RoomError{Code: core.RoomUnavailable, Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg := cr.Message
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return "", &core.RoomError{Code: core.RoomCreationRejected, Message: msg}
	case cr.RoomID == "":
		return "", &core.RoomError{Code: core.RoomCreationRejected, Message: "empty room id"}
	}
	return domain.RoomID(cr.RoomID), nil
}

// Fallback synthesizes a local room id after a transient creation failure.
// Nobody else can discover the result; only test mode may use it.
func (r *Resolver) Fallback(sessionID string, cause error) (*domain.Room, error) {
	if !core.Transient(cause) {
		return nil, cause
	}
	var re *core.RoomError
	if !errors.As(cause, &re) {
		return nil, cause
	}
	now := r.now()
	id := domain.RoomID(fmt.Sprintf("test-meeting-%s-%d", sessionID, now.UnixMilli()))
	log.Warn().Str("module", "room").Str("room_id", string(id)).Msg("using non-shared local fallback room")
	return domain.NewRoom(id, domain.RoomTest, now), nil
}
