package extraviados

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/extraviadosmx/poster-backup/internal/ref"
	"github.com/google/go-cmp/cmp"
)

func TestMppUnmarshal(t *testing.T) {
	const body = `{
		"id": "0198f3a2",
		"slug": "maria-lopez",
		"mp_name": "María López",
		"mp_height": 160,
		"mp_weight": null,
		"mp_physical_build": "slim",
		"mp_complexion": "light",
		"mp_sex": "female",
		"mp_dob": "2001-07-15",
		"mp_age_when_disappeared": 20,
		"mp_eyes_description": "brown",
		"mp_hair_description": "black",
		"mp_outfit_description": "",
		"mp_identifying_characteristics": "",
		"circumstances_behind_dissapearance": "",
		"missing_from": "Monterrey",
		"missing_date": "2022-01-30",
		"found": false,
		"alert_type": "AMBER",
		"po_state": "NL",
		"po_post_url": "https://extraviados.mx/maria-lopez/",
		"po_post_publication_date": null,
		"po_poster_url": "https://example.com/maria.pdf",
		"is_multiple": false,
		"updated_at": "2022-02-01T08:15:30.123456",
		"created_at": "2022-01-31T23:59:59Z"
	}`

	var got Mpp

	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatalf("Unmarshal() failed: %v", err)
	}

	want := Mpp{
		ID:                 "0198f3a2",
		Slug:               "maria-lopez",
		Name:               "María López",
		Height:             ref.Ref(160),
		PhysicalBuild:      "slim",
		Complexion:         "light",
		Sex:                "female",
		DateOfBirth:        Date{time.Date(2001, time.July, 15, 0, 0, 0, 0, time.UTC)},
		AgeWhenDisappeared: 20,
		EyesDescription:    "brown",
		HairDescription:    "black",
		MissingFrom:        "Monterrey",
		MissingDate:        Date{time.Date(2022, time.January, 30, 0, 0, 0, 0, time.UTC)},
		AlertType:          "AMBER",
		State:              "NL",
		PostURL:            "https://extraviados.mx/maria-lopez/",
		PosterURL:          "https://example.com/maria.pdf",
		UpdatedAt:          Timestamp{time.Date(2022, time.February, 1, 8, 15, 30, 123456000, time.UTC)},
		CreatedAt:          Timestamp{time.Date(2022, time.January, 31, 23, 59, 59, 0, time.UTC)},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Record diff (-want +got):\n%s", diff)
	}
}

func TestTimestampUnmarshalError(t *testing.T) {
	var ts Timestamp

	if err := json.Unmarshal([]byte(`"yesterday"`), &ts); err == nil {
		t.Error("Unmarshal() succeeded with invalid timestamp")
	}
}
