package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/pr-poehali-dev/spa-community-portal/internal/credstore"
)

const healthProbeKey = "health_check_probe"

// HealthStatus сводка по хранилищам сессии и удалённым функциям
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]Status `json:"services"`
}

// Status состояние отдельной части
type Status struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

func (h *HealthStatus) Healthy() bool { return h.Status == "healthy" }

// Names имена проверенных частей по алфавиту
func (h *HealthStatus) Names() []string {
	names := make([]string, 0, len(h.Services))
	for n := range h.Services {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker проверяет хранилища и доступность API
type HealthChecker struct {
	backends  []credstore.Backend
	endpoints map[string]string
	http      *resty.Client
	timeout   time.Duration
}

func NewHealthChecker(backends []credstore.Backend, endpoints map[string]string, timeout time.Duration) *HealthChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthChecker{
		backends:  backends,
		endpoints: endpoints,
		http:      resty.New().SetTimeout(timeout),
		timeout:   timeout,
	}
}

// CheckHealth проверяет всё сразу; одна неисправная часть делает общий статус unhealthy
func (h *HealthChecker) CheckHealth(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Services:  make(map[string]Status),
	}

	for _, b := range h.backends {
		status.Services["store:"+b.Name()] = h.checkBackend(ctx, b)
	}
	for name, url := range h.endpoints {
		if url == "" {
			continue
		}
		status.Services["api:"+name] = h.checkEndpoint(ctx, url)
	}

	for _, s := range status.Services {
		if s.Status == "unhealthy" {
			status.Status = "unhealthy"
			break
		}
	}

	return status
}

// checkBackend пишет, читает и удаляет пробный ключ
func (h *HealthChecker) checkBackend(ctx context.Context, b credstore.Backend) Status {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	if p, ok := b.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return Status{Status: "unhealthy", Message: fmt.Sprintf("ping failed: %v", err)}
		}
	}

	value := start.Format(time.RFC3339Nano)
	if err := b.Set(ctx, healthProbeKey, value, time.Minute); err != nil {
		return Status{Status: "unhealthy", Message: fmt.Sprintf("write failed: %v", err)}
	}

	got, err := b.Get(ctx, healthProbeKey)
	if err != nil || got != value {
		return Status{Status: "unhealthy", Message: fmt.Sprintf("read back failed: %v", err)}
	}

	if err := b.Delete(ctx, healthProbeKey); err != nil {
		return Status{Status: "unhealthy", Message: fmt.Sprintf("delete failed: %v", err)}
	}

	return Status{
		Status:  "healthy",
		Message: "read/write ok",
		Latency: time.Since(start).String(),
	}
}

// checkEndpoint считает функцию доступной, если она вообще ответила по HTTP.
// Без action функции портала отвечают 4xx, это нормально
func (h *HealthChecker) checkEndpoint(ctx context.Context, url string) Status {
	start := time.Now()

	resp, err := h.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return Status{Status: "unhealthy", Message: fmt.Sprintf("request failed: %v", err)}
	}
	if resp.StatusCode() >= 500 {
		return Status{
			Status:  "unhealthy",
			Message: fmt.Sprintf("HTTP %d", resp.StatusCode()),
			Latency: time.Since(start).String(),
		}
	}

	return Status{
		Status:  "healthy",
		Message: fmt.Sprintf("HTTP %d", resp.StatusCode()),
		Latency: time.Since(start).String(),
	}
}
