package inventory

import (
	"fmt"
	"strings"
)

// ServiceType identifies which travel inventory a search targets.
type ServiceType string

const (
	ServiceHotel    ServiceType = "hotel"
	ServiceFlight   ServiceType = "flight"
	ServiceActivity ServiceType = "activity"
)

// ParseServiceType validates a service type string.
func ParseServiceType(s string) (ServiceType, error) {
	switch ServiceType(strings.ToLower(s)) {
	case ServiceHotel:
		return ServiceHotel, nil
	case ServiceFlight:
		return ServiceFlight, nil
	case ServiceActivity:
		return ServiceActivity, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownServiceType, s)
	}
}

// Offer is one raw record returned by an upstream provider. Providers
// disagree about shape, so fields are kept as-is and probed downstream.
type Offer map[string]interface{}

// Source returns the offer's own source identifier, if it carries one.
func (o Offer) Source() string {
	for _, key := range []string{"source", "provider"} {
		if s, ok := o[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// Batch is one provider's response to a search: a success flag plus the
// service-specific result array.
type Batch struct {
	Success    bool    `json:"success"`
	Provider   string  `json:"provider,omitempty"`
	Hotels     []Offer `json:"hotels,omitempty"`
	Flights    []Offer `json:"flights,omitempty"`
	Activities []Offer `json:"activities,omitempty"`
}

// Offers returns the result array matching the service type.
func (b Batch) Offers(service ServiceType) []Offer {
	switch service {
	case ServiceHotel:
		return b.Hotels
	case ServiceFlight:
		return b.Flights
	case ServiceActivity:
		return b.Activities
	default:
		return nil
	}
}

// Query holds the parameters of one search request.
type Query struct {
	Service     ServiceType
	Destination string
	Origin      string
	CheckIn     string
	Date        string
	Nights      int
	Guests      int

	// CorrelationID tags every provider call belonging to one search.
	// Assigned by the fan-out when empty.
	CorrelationID string
}

// CacheKey returns a stable key for response caching. The correlation id is
// deliberately excluded.
func (q Query) CacheKey() string {
	return fmt.Sprintf("%s:%s:%s:%s:%s:%d:%d",
		q.Service, q.Destination, q.Origin, q.CheckIn, q.Date, q.Nights, q.Guests)
}
