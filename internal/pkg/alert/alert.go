package alert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// ConfigFunc is called on each push to get the latest alert settings.
type ConfigFunc func() (key, serverURL, storeName string)

// Service sends ops push notifications via the Bark API. Used for rate-limit
// abuse and delivery-failure alerts; every push is best effort.
type Service struct {
	configFn   ConfigFunc
	httpClient *http.Client

	mu         sync.Mutex
	lastPushAt map[string]time.Time
	throttleD  time.Duration
}

// New creates an alert service. configFn is called on each push.
func New(configFn ConfigFunc) *Service {
	return &Service{
		configFn:   configFn,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		lastPushAt: make(map[string]time.Time),
		throttleD:  10 * time.Minute,
	}
}

type pushPayload struct {
	DeviceKey string `json:"device_key"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Group     string `json:"group,omitempty"`
}

// Push sends a notification immediately (no throttle).
func (s *Service) Push(title, body string) error {
	key, serverURL, storeName := s.configFn()
	if key == "" {
		return fmt.Errorf("alert key not configured")
	}
	if serverURL == "" {
		serverURL = "https://day.app"
	}

	payload := pushPayload{
		DeviceKey: key,
		Title:     fmt.Sprintf("[%s] %s", storeName, title),
		Body:      body,
		Group:     storeName,
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	resp, err := s.httpClient.Post(serverURL+"/push", "application/json", bytes.NewReader(b))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

// ThrottlePush sends a notification for a repeated event key, at most once per
// throttle window.
func (s *Service) ThrottlePush(eventKey, title, body string) {
	key, _, _ := s.configFn()
	if key == "" {
		return
	}

	s.mu.Lock()
	last, ok := s.lastPushAt[eventKey]
	if ok && time.Since(last) < s.throttleD {
		s.mu.Unlock()
		return
	}
	s.lastPushAt[eventKey] = time.Now()
	s.mu.Unlock()

	_ = s.Push(title, body)
}
