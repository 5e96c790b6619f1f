package address

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/pcstore-storefront/pkg/errors"
	"github.com/angelmondragon/pcstore-storefront/pkg/maps"
	"github.com/angelmondragon/pcstore-storefront/pkg/types"
)

const defaultCountry = "Việt Nam"

type Service interface {
	Suggest(ctx context.Context, req SuggestRequest) ([]Suggestion, error)
	Resolve(ctx context.Context, req ResolveRequest) (types.Address, error)
}

// placesClient is the subset of maps.Client the service calls.
type placesClient interface {
	Autocomplete(ctx context.Context, req maps.AutocompleteRequest) ([]maps.AutocompleteSuggestion, error)
	ResolvePlace(ctx context.Context, placeID string) (*maps.PlaceDetails, error)
}

type service struct {
	maps placesClient
}

// NewService returns a Service backed by the Places client. A nil client yields a
// service that reports the dependency as unavailable.
func NewService(client *maps.Client) Service {
	if client == nil {
		return &service{}
	}
	return &service{maps: client}
}

func newServiceWith(client placesClient) *service {
	return &service{maps: client}
}

func (s *service) Suggest(ctx context.Context, req SuggestRequest) ([]Suggestion, error) {
	if s == nil || s.maps == nil {
		return nil, errors.New(errors.CodeDependency, "address lookup unavailable")
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, errors.New(errors.CodeValidation, "query is required")
	}

	payload := maps.AutocompleteRequest{Input: query}
	if country := strings.TrimSpace(req.Country); country != "" {
		payload.IncludedRegionCodes = []string{strings.ToUpper(country)}
	}
	if lang := strings.TrimSpace(req.Language); lang != "" {
		payload.LanguageCode = lang
	}

	resp, err := s.maps.Autocomplete(ctx, payload)
	if err != nil {
		return nil, err
	}

	suggestions := make([]Suggestion, 0, len(resp))
	for _, item := range resp {
		suggestions = append(suggestions, Suggestion{
			PlaceID:     item.PlaceID,
			Description: item.Description,
		})
	}
	return suggestions, nil
}

func (s *service) Resolve(ctx context.Context, req ResolveRequest) (types.Address, error) {
	if s == nil || s.maps == nil {
		return types.Address{}, errors.New(errors.CodeDependency, "address lookup unavailable")
	}
	if strings.TrimSpace(req.PlaceID) == "" {
		return types.Address{}, errors.New(errors.CodeValidation, "placeId is required")
	}

	details, err := s.maps.ResolvePlace(ctx, req.PlaceID)
	if err != nil {
		return types.Address{}, err
	}
	return mapPlaceDetails(details)
}

func mapPlaceDetails(details *maps.PlaceDetails) (types.Address, error) {
	if details == nil {
		return types.Address{}, errors.New(errors.CodeDependency, "place details missing")
	}
	if details.Location.Latitude == 0 && details.Location.Longitude == 0 {
		return types.Address{}, errors.New(errors.CodeDependency, "place location missing")
	}

	find := func(kinds ...string) (string, bool) {
		for _, kind := range kinds {
			for _, comp := range details.AddressComponents {
				for _, typ := range comp.Types {
					if typ == kind && comp.LongName != "" {
						return comp.LongName, true
					}
				}
			}
		}
		return "", false
	}

	line1 := ""
	if number, ok := find("street_number"); ok {
		line1 = number
	}
	if route, ok := find("route"); ok {
		if line1 != "" {
			line1 = fmt.Sprintf("%s %s", line1, route)
		} else {
			line1 = route
		}
	}
	if line1 == "" && strings.TrimSpace(details.FormattedAddress) != "" {
		parts := strings.Split(details.FormattedAddress, ",")
		line1 = strings.TrimSpace(parts[0])
	}
	if line1 == "" {
		return types.Address{}, errors.New(errors.CodeDependency, "address line1 missing")
	}

	var line2 *string
	if sub, ok := find("subpremise"); ok {
		line2 = ptr(sub)
	}

	// Wards show up as sublocality in most results and as level 3 admin areas in others.
	ward, _ := find("sublocality_level_1", "sublocality", "administrative_area_level_3")
	district, _ := find("administrative_area_level_2", "locality")

	province, ok := find("administrative_area_level_1")
	if !ok {
		return types.Address{}, errors.New(errors.CodeDependency, "province missing")
	}

	postalCode, _ := find("postal_code")

	country, ok := find("country")
	if !ok {
		country = defaultCountry
	}

	addr := types.Address{
		PlaceID:    details.PlaceID,
		Formatted:  strings.TrimSpace(details.FormattedAddress),
		Line1:      line1,
		Line2:      line2,
		Ward:       ward,
		District:   district,
		Province:   province,
		PostalCode: postalCode,
		Country:    country,
		Lat:        details.Location.Latitude,
		Lng:        details.Location.Longitude,
	}
	if addr.Formatted == "" {
		addr.Formatted = addr.OneLine()
	}
	return addr, nil
}

func ptr(value string) *string {
	if value == "" {
		return nil
	}
	v := value
	return &v
}

type SuggestRequest struct {
	Query    string
	Country  string
	Language string
}

type ResolveRequest struct {
	PlaceID string
}

type Suggestion struct {
	PlaceID     string `json:"placeId"`
	Description string `json:"description"`
}
