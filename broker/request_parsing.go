package broker

import (
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/venicegeo/bf-s2-tile-broker/model"
)

// Form fields
const (
	longitudeField     = "longitude"
	latitudeField      = "latitude"
	startDateField     = "start_date"
	endDateField       = "end_date"
	maxCloudCoverField = "max_cloud_cover"
	modeField          = "mode"
)

func requiredValue(values url.Values, field string) (string, error) {
	value := strings.TrimSpace(values.Get(field))
	if value == "" {
		return "", model.Errorf(model.ValidationError, "Missing required field `%s`", field)
	}
	return value, nil
}

func floatValue(values url.Values, field string) (float64, error) {
	raw, err := requiredValue(values, field)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, model.NewError(model.ValidationError, "Invalid "+field+" value `"+raw+"`", err)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, model.Errorf(model.ValidationError, "Invalid %s value `%s`", field, raw)
	}
	return value, nil
}

func dateValue(values url.Values, field string) (time.Time, error) {
	raw, err := requiredValue(values, field)
	if err != nil {
		return time.Time{}, err
	}
	value, err := model.ParseFormDate(raw)
	if err != nil {
		return time.Time{}, model.NewError(model.ValidationError, "Invalid "+field+" value `"+raw+"` (expected YYYY-MM-DD)", err)
	}
	return value, nil
}

// formValues parses the URL query and, for POST requests, the form body
func formValues(r *http.Request) (url.Values, error) {
	if err := r.ParseForm(); err != nil {
		return nil, model.NewError(model.ValidationError, "Could not parse the request form", err)
	}
	return r.Form, nil
}

// ParseQuery reads a Query from form or URL query values and validates it
func ParseQuery(values url.Values) (model.Query, error) {
	var (
		query model.Query
		err   error
	)
	if query.Longitude, err = floatValue(values, longitudeField); err != nil {
		return query, err
	}
	if query.Latitude, err = floatValue(values, latitudeField); err != nil {
		return query, err
	}
	if query.StartDate, err = dateValue(values, startDateField); err != nil {
		return query, err
	}
	if query.EndDate, err = dateValue(values, endDateField); err != nil {
		return query, err
	}
	if query.MaxCloudCover, err = floatValue(values, maxCloudCoverField); err != nil {
		return query, err
	}
	return query, query.Validate()
}

// ParseMode reads the optional mode field, falling back to def
func ParseMode(values url.Values, def model.Mode) (model.Mode, error) {
	if strings.TrimSpace(values.Get(modeField)) == "" {
		return def, nil
	}
	return model.ParseMode(values.Get(modeField))
}
