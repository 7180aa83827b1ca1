// Package reporter - клиентская сторона протокола отчетов: HTTP-клиент агента
// и цикл периодической отправки с паузами после сетевых ошибок.
package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

var (
	ErrUnauthorized    = errors.New("токен агента недействителен")
	ErrUpgradeRequired = errors.New("требуется обновление агента")
	ErrTemplateChanged = errors.New("анкета завершения дня обновлена")
)

// Sample - отчет агента
type Sample struct {
	Timestamp     time.Time `json:"timestamp,omitempty"`
	ProcessName   string    `json:"processName"`
	WindowTitle   string    `json:"windowTitle"`
	IdleSeconds   int       `json:"idleSeconds"`
	ReportType    string    `json:"reportType"`
	ClientVersion string    `json:"clientVersion"`
	Reason        string    `json:"reason,omitempty"`
	Checkout      *Answers  `json:"checkout,omitempty"`
}

// Answers - заполненная анкета завершения дня, ключи Data - id полей
type Answers struct {
	TemplateID uint              `json:"templateId"`
	Data       map[string]string `json:"data"`
}

// Field - поле анкеты завершения дня
type Field struct {
	ID       uint     `json:"id"`
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Required bool     `json:"required"`
	Options  []string `json:"options"`
}

// Template - анкета, которую агент показывает при завершении дня
type Template struct {
	ID     uint    `json:"id"`
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

type templateReply struct {
	Exists   bool      `json:"exists"`
	Template *Template `json:"template"`
}

// Policy - настройки, которые сервер возвращает на каждый отчет
type Policy struct {
	IdleThresholdSeconds     int    `json:"idleThresholdSeconds"`
	HeartbeatIntervalSeconds int    `json:"heartbeatIntervalSeconds"`
	OfflineThresholdSeconds  int    `json:"offlineThresholdSeconds"`
	UpdatePolicy             int    `json:"updatePolicy"`
	LatestVersion            string `json:"latestVersion"`
	UpdateURL                string `json:"updateUrl"`
}

type Violation struct {
	Type          string `json:"type"`
	StatusCode    string `json:"statusCode"`
	TriggerAction string `json:"triggerAction"`
	ActualSeconds int64  `json:"actualSeconds"`
	LimitSeconds  int64  `json:"limitSeconds"`
	Message       string `json:"message"`
}

// NeedReasonError - сервер не принял завершение дня без причины
type NeedReasonError struct {
	Message    string
	Violations []Violation
}

func (e *NeedReasonError) Error() string {
	return e.Message
}

// StatusError - прочие ответы сервера с ошибкой
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("сервер ответил %d: %s", e.StatusCode, e.Message)
}

type errorBody struct {
	Error      string      `json:"error"`
	Code       string      `json:"code"`
	Violations []Violation `json:"violations"`
}

type bindRequest struct {
	EmployeeCode  string `json:"employeeCode"`
	Fingerprint   string `json:"fingerprint"`
	ClientVersion string `json:"clientVersion"`
}

type bindReply struct {
	Token string `json:"token"`
	Policy
}

// Client отправляет запросы агента
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Bind привязывает устройство к сотруднику и сохраняет выданный токен
func (c *Client) Bind(ctx context.Context, employeeCode, fingerprint, clientVersion string) (Policy, error) {
	var reply bindReply
	err := c.post(ctx, "/api/v1/client/bind", "", bindRequest{
		EmployeeCode:  employeeCode,
		Fingerprint:   fingerprint,
		ClientVersion: clientVersion,
	}, &reply)
	if err != nil {
		return Policy{}, err
	}
	c.SetToken(reply.Token)
	return reply.Policy, nil
}

// Report отправляет отчет и возвращает действующую политику
func (c *Client) Report(ctx context.Context, sample Sample) (Policy, error) {
	token := c.Token()
	if token == "" {
		return Policy{}, ErrUnauthorized
	}
	var policy Policy
	if err := c.post(ctx, "/api/v1/client/report", token, sample, &policy); err != nil {
		return Policy{}, err
	}
	return policy, nil
}

// CheckoutTemplate возвращает включенную анкету отдела или nil, если анкеты нет
func (c *Client) CheckoutTemplate(ctx context.Context) (*Template, error) {
	token := c.Token()
	if token == "" {
		return nil, ErrUnauthorized
	}
	var reply templateReply
	if err := c.do(ctx, http.MethodGet, "/api/v1/client/checkout-template", token, nil, &reply); err != nil {
		return nil, err
	}
	if !reply.Exists {
		return nil, nil
	}
	return reply.Template, nil
}

func (c *Client) post(ctx context.Context, path, token string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, token, body, out)
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return json.NewDecoder(resp.Body).Decode(out)
	}

	var failure errorBody
	_ = json.NewDecoder(resp.Body).Decode(&failure)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, failure.Error)
	case resp.StatusCode == http.StatusUpgradeRequired:
		return ErrUpgradeRequired
	case resp.StatusCode == http.StatusConflict && failure.Code == "need_reason":
		return &NeedReasonError{Message: failure.Error, Violations: failure.Violations}
	case resp.StatusCode == http.StatusConflict && failure.Code == "template_updated":
		return fmt.Errorf("%w: %s", ErrTemplateChanged, failure.Error)
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: failure.Error}
}
