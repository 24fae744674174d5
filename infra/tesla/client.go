package tesla

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	coretesla "github.com/sillyfrog/tesla-mqtt/core/tesla"
	"github.com/sillyfrog/tesla-mqtt/infra/logger"
)

// Config defines the Owner API endpoint and credentials. Token acquisition
// is out of scope; the client consumes a pre-obtained access token.
type Config struct {
	BaseURL        string `json:"base_url"`
	AccessToken    string `json:"access_token"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://owner-api.teslamotors.com"
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 30
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.AccessToken == "" {
		return fmt.Errorf("tesla access_token is required")
	}
	return nil
}

// Connector opens Owner API sessions.
type Connector struct {
	cfg Config
	log logger.Logger
}

// NewConnector creates a Connector from the configuration.
func NewConnector(cfg Config) *Connector {
	return &Connector{cfg: cfg, log: logger.New("tesla_client")}
}

// Connect verifies the API is reachable with the configured token and
// returns a session.
func (c *Connector) Connect(ctx context.Context) (coretesla.Session, error) {
	s := &session{
		cfg: c.cfg,
		cli: &http.Client{Timeout: time.Duration(c.cfg.TimeoutSeconds) * time.Second},
		log: c.log,
	}
	// A cheap authenticated call proves the token is still good.
	if _, err := s.vehicleList(ctx); err != nil {
		return nil, fmt.Errorf("verify session: %w", err)
	}
	return s, nil
}

type session struct {
	cfg Config
	cli *http.Client
	log logger.Logger
}

type vehicleRecord struct {
	ID          int64  `json:"id"`
	VIN         string `json:"vin"`
	DisplayName string `json:"display_name"`
	State       string `json:"state"`
}

func (s *session) vehicleList(ctx context.Context) ([]vehicleRecord, error) {
	var out []vehicleRecord
	if err := s.get(ctx, "/api/1/vehicles", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Vehicle selects a car by VIN, or the first on the account when vin is
// empty. The full data fetch on selection provides the identity fields the
// discovery descriptors need.
func (s *session) Vehicle(ctx context.Context, vin string) (coretesla.Vehicle, error) {
	records, err := s.vehicleList(ctx)
	if err != nil {
		return nil, fmt.Errorf("vehicle list: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no vehicles on account")
	}
	rec := records[0]
	if vin != "" {
		found := false
		for _, r := range records {
			if strings.EqualFold(r.VIN, vin) {
				rec = r
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("no vehicle with VIN %s", vin)
		}
	}

	v := &vehicle{sess: s, id: rec.ID, ident: coretesla.Identity{VIN: rec.VIN, Name: rec.DisplayName}}
	var data struct {
		VehicleState struct {
			VehicleName string `json:"vehicle_name"`
		} `json:"vehicle_state"`
		VehicleConfig struct {
			CarType     string `json:"car_type"`
			TrimBadging string `json:"trim_badging"`
		} `json:"vehicle_config"`
	}
	if err := s.get(ctx, v.path("vehicle_data"), &data); err != nil {
		// The car may be asleep; the list record already names it.
		s.log.Debugf("identity fetch: %v", err)
	} else {
		if data.VehicleState.VehicleName != "" {
			v.ident.Name = data.VehicleState.VehicleName
		}
		v.ident.CarType = data.VehicleConfig.CarType
		v.ident.TrimBadging = data.VehicleConfig.TrimBadging
	}
	return v, nil
}

func (s *session) Close() error {
	s.cli.CloseIdleConnections()
	return nil
}

// get performs an authenticated GET and decodes the "response" envelope
// into out.
func (s *session) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.AccessToken)

	resp, err := s.cli.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, body)
	}

	var envelope struct {
		Response json.RawMessage `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if err := json.Unmarshal(envelope.Response, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// command performs an authenticated command POST. The "already_set" reason
// maps to the structured coretesla.ErrAlreadySet.
func (s *session) command(ctx context.Context, path string, params any) error {
	var body io.Reader
	if params != nil {
		payload, err := json.Marshal(params)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.cli.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, raw)
	}

	var envelope struct {
		Response struct {
			Result bool   `json:"result"`
			Reason string `json:"reason"`
		} `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if envelope.Response.Result {
		return nil
	}
	if envelope.Response.Reason == "already_set" {
		return coretesla.ErrAlreadySet
	}
	return fmt.Errorf("command rejected: %s", envelope.Response.Reason)
}

type vehicle struct {
	sess  *session
	id    int64
	ident coretesla.Identity
}

func (v *vehicle) path(suffix string) string {
	return fmt.Sprintf("/api/1/vehicles/%d/%s", v.id, suffix)
}

func (v *vehicle) Identity() coretesla.Identity { return v.ident }

func (v *vehicle) Summary(ctx context.Context) (coretesla.Summary, error) {
	var out coretesla.Summary
	if err := v.sess.get(ctx, fmt.Sprintf("/api/1/vehicles/%d", v.id), &out); err != nil {
		return coretesla.Summary{}, err
	}
	return out, nil
}

func (v *vehicle) Data(ctx context.Context) (coretesla.Snapshot, error) {
	var out coretesla.Snapshot
	if err := v.sess.get(ctx, v.path("vehicle_data"), &out); err != nil {
		return coretesla.Snapshot{}, err
	}
	return out, nil
}

func (v *vehicle) SetChargeLimit(ctx context.Context, percent int) error {
	return v.sess.command(ctx, v.path("command/set_charge_limit"), map[string]int{"percent": percent})
}

func (v *vehicle) StartCharging(ctx context.Context) error {
	return v.sess.command(ctx, v.path("command/charge_start"), nil)
}

func (v *vehicle) StopCharging(ctx context.Context) error {
	return v.sess.command(ctx, v.path("command/charge_stop"), nil)
}
