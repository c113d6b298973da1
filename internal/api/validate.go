package api

import (
	"fmt"
	"net/url"

	"factoryplan/internal/config"
	"factoryplan/internal/model"
	"factoryplan/internal/opt"
)

// validateOptimizeRequest enforces the service size limits. Per-field problem checks are
// left to opt.Problem.Validate.
func validateOptimizeRequest(req *model.OptimizeRequest, lim config.SolverConfig) error {
	if len(req.Orders) > lim.MaxOrders {
		return fmt.Errorf("at most %d orders per request, got %d", lim.MaxOrders, len(req.Orders))
	}
	if len(req.Facilities) > lim.MaxFacilities {
		return fmt.Errorf("at most %d facilities per request, got %d", lim.MaxFacilities, len(req.Facilities))
	}
	if req.TimeBudgetMs < 0 {
		return fmt.Errorf("timeBudgetMs must be >= 0")
	}
	if req.MaxNodes < 0 {
		return fmt.Errorf("maxNodes must be >= 0")
	}
	if req.SetupCharge != "" {
		if _, err := opt.ParseSetupCharge(req.SetupCharge); err != nil {
			return err
		}
	}
	seen := make(map[string]struct{}, len(req.Facilities))
	for i, f := range req.Facilities {
		if f.ID == "" {
			continue
		}
		if _, dup := seen[f.ID]; dup {
			return fmt.Errorf("facilities[%d]: duplicate id %q", i, f.ID)
		}
		seen[f.ID] = struct{}{}
	}
	return nil
}

// validateOptimizerConfig checks a tenant override document.
func validateOptimizerConfig(cfg map[string]any) error {
	for k, v := range cfg {
		switch k {
		case "setupCharge":
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("setupCharge must be a string")
			}
			if _, err := opt.ParseSetupCharge(s); err != nil {
				return err
			}
		case "timeBudgetMs", "maxNodes":
			n, ok := intFrom(v)
			if !ok || n < 0 {
				return fmt.Errorf("%s must be a non-negative integer", k)
			}
		default:
			return fmt.Errorf("unknown config key: %s (allowed: setupCharge,timeBudgetMs,maxNodes)", k)
		}
	}
	return nil
}

func intFrom(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

func validateSubscription(req model.SubscriptionRequest) error {
	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("url must be an absolute http(s) URL")
	}
	if len(req.Events) == 0 {
		return fmt.Errorf("events must not be empty")
	}
	for _, e := range req.Events {
		switch e {
		case model.EventPlanSolved, model.EventPlanInfeasible, "*":
		default:
			return fmt.Errorf("unknown event type: %s", e)
		}
	}
	return nil
}
