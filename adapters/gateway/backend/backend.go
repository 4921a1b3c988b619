package backend

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Go-routine-4595/equipment-dash/model"
)

const (
	LoginPath     = "/api/login/"
	EquipmentPath = "/api/equipment/"
	SummaryPath   = "/api/summary/"
	HistoryPath   = "/api/history/"
	UploadPath    = "/api/upload/"
	ReportPath    = "/api/report/pdf/"

	defaultTimeout = 30 * time.Second
)

type BackendConfig struct {
	BaseURL        string `yaml:"BaseURL"`
	TimeoutSeconds int    `yaml:"TimeoutSeconds"`
	InsecureTLS    bool   `yaml:"InsecureTLS"`
}

// StatusError is returned for any non-2xx answer. The body is not inspected.
type StatusError struct {
	Endpoint   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Endpoint, e.StatusCode)
}

// Client talks to the inventory backend. The credential is fixed at
// construction and attached to every authenticated request.
type Client struct {
	baseURL    string
	credential model.Credential
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewClient(conf BackendConfig, cred model.Credential, logger zerolog.Logger) *Client {
	var (
		timeout   time.Duration
		transport *http.Transport
	)

	timeout = defaultTimeout
	if conf.TimeoutSeconds > 0 {
		timeout = time.Duration(conf.TimeoutSeconds) * time.Second
	}

	transport = http.DefaultTransport.(*http.Transport).Clone()
	if conf.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	return &Client{
		baseURL:    strings.TrimRight(conf.BaseURL, "/"),
		credential: cred,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		logger: logger,
	}
}

// WithCredential returns a client sharing the same connection pool but
// authenticating with cred.
func (c *Client) WithCredential(cred model.Credential) *Client {
	cp := *c
	cp.credential = cred
	return &cp
}

// Login exchanges username and password for a bearer credential.
func (c *Client) Login(ctx context.Context, username string, password string) (model.Credential, error) {
	var (
		body []byte
		req  *http.Request
		resp struct {
			Access string `json:"access"`
		}
		err error
	)

	body, err = json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return model.Credential{}, errors.Join(err, errors.New("failed to marshal login request"))
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+LoginPath, bytes.NewReader(body))
	if err != nil {
		return model.Credential{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	if err = c.do(req, LoginPath, &resp); err != nil {
		return model.Credential{}, err
	}
	if resp.Access == "" {
		return model.Credential{}, errors.New("login response carries no access token")
	}
	return model.Credential{Token: resp.Access}, nil
}

func (c *Client) Equipment(ctx context.Context) ([]model.EquipmentRecord, error) {
	var list []model.EquipmentRecord

	if err := c.getJSON(ctx, EquipmentPath, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) Summary(ctx context.Context) (*model.SummaryPayload, error) {
	var summary model.SummaryPayload

	if err := c.getJSON(ctx, SummaryPath, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (c *Client) History(ctx context.Context) ([]model.UploadHistoryEntry, error) {
	var history []model.UploadHistoryEntry

	if err := c.getJSON(ctx, HistoryPath, &history); err != nil {
		return nil, err
	}
	return history, nil
}

// Upload posts the file as the multipart field "file". Only the status code
// decides success.
func (c *Client) Upload(ctx context.Context, file model.StagedFile) error {
	var (
		buf bytes.Buffer
		mw  *multipart.Writer
		fw  io.Writer
		req *http.Request
		err error
	)

	mw = multipart.NewWriter(&buf)
	fw, err = mw.CreateFormFile("file", file.Name)
	if err != nil {
		return errors.Join(err, errors.New("failed to create multipart field"))
	}
	if _, err = fw.Write(file.Data); err != nil {
		return errors.Join(err, errors.New("failed to write multipart body"))
	}
	if err = mw.Close(); err != nil {
		return errors.Join(err, errors.New("failed to close multipart body"))
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+UploadPath, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.authorize(req)

	return c.do(req, UploadPath, nil)
}

// Report streams the PDF report into w and returns the number of bytes written.
func (c *Client) Report(ctx context.Context, w io.Writer) (int64, error) {
	var (
		req  *http.Request
		resp *http.Response
		n    int64
		err  error
	)

	req, err = http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+ReportPath, nil)
	if err != nil {
		return 0, err
	}
	c.authorize(req)

	resp, err = c.httpClient.Do(req)
	if err != nil {
		return 0, errors.Join(err, errors.New("request "+ReportPath))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, &StatusError{Endpoint: ReportPath, StatusCode: resp.StatusCode}
	}

	n, err = io.Copy(w, resp.Body)
	if err != nil {
		return n, errors.Join(err, errors.New("failed to read report body"))
	}
	return n, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	c.authorize(req)

	return c.do(req, path, out)
}

func (c *Client) authorize(req *http.Request) {
	if bearer := c.credential.Bearer(); bearer != "" {
		req.Header.Set("Authorization", bearer)
	}
}

// do sends the request and decodes a 2xx JSON body into out when out is not nil.
func (c *Client) do(req *http.Request, endpoint string, out any) error {
	var (
		resp  *http.Response
		start time.Time
		err   error
	)

	start = time.Now()
	resp, err = c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("endpoint", endpoint).Msg("request failed")
		return errors.Join(err, errors.New("request "+endpoint))
	}
	defer resp.Body.Close()

	c.logger.Debug().Str("method", req.Method).Str("endpoint", endpoint).Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).Msg("backend response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Join(err, errors.New("malformed body from "+endpoint))
	}
	return nil
}
