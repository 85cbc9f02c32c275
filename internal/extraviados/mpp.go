package extraviados

import (
	"bytes"
	"fmt"
	"time"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// Date is a calendar date as returned by the API ("2006-01-02" or null).
type Date struct {
	time.Time
}

var _ fmt.Stringer = (*Date)(nil)

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		d.Time = time.Time{}
		return nil
	}

	parsed, err := time.Parse(`"`+time.DateOnly+`"`, string(data))
	if err != nil {
		return fmt.Errorf("date %s: %w", data, err)
	}

	d.Time = parsed

	return nil
}

func (d Date) String() string {
	return d.Format(time.DateOnly)
}

// Timestamp is a point in time in Python's isoformat, with or without a
// timezone offset.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	raw := string(bytes.Trim(data, `"`))

	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed
			return nil
		}
	}

	return fmt.Errorf("unrecognized timestamp %s", data)
}

// Mpp is one missing person poster record.
type Mpp struct {
	ID                               string    `json:"id"`
	Slug                             string    `json:"slug"`
	Name                             string    `json:"mp_name"`
	Height                           *int      `json:"mp_height"`
	Weight                           *int      `json:"mp_weight"`
	PhysicalBuild                    string    `json:"mp_physical_build"`
	Complexion                       string    `json:"mp_complexion"`
	Sex                              string    `json:"mp_sex"`
	DateOfBirth                      Date      `json:"mp_dob"`
	AgeWhenDisappeared               int       `json:"mp_age_when_disappeared"`
	EyesDescription                  string    `json:"mp_eyes_description"`
	HairDescription                  string    `json:"mp_hair_description"`
	OutfitDescription                string    `json:"mp_outfit_description"`
	IdentifyingCharacteristics       string    `json:"mp_identifying_characteristics"`
	CircumstancesBehindDisappearance string    `json:"circumstances_behind_dissapearance"`
	MissingFrom                      string    `json:"missing_from"`
	MissingDate                      Date      `json:"missing_date"`
	Found                            bool      `json:"found"`
	AlertType                        string    `json:"alert_type"`
	State                            string    `json:"po_state"`
	PostURL                          string    `json:"po_post_url"`
	PostPublicationDate              Date      `json:"po_post_publication_date"`
	PosterURL                        string    `json:"po_poster_url"`
	IsMultiple                       bool      `json:"is_multiple"`
	UpdatedAt                        Timestamp `json:"updated_at"`
	CreatedAt                        Timestamp `json:"created_at"`
}
