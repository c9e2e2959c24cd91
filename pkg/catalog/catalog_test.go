package catalog

import (
	"encoding/json"
	"testing"
)

func TestFetchCursor_Next(t *testing.T) {
	c := FetchCursor{Skip: 0, Limit: 5}

	for i := 1; i <= 4; i++ {
		c = c.Next()
		if c.Skip != i*5 {
			t.Errorf("Skip after %d advances = %d, want %d", i, c.Skip, i*5)
		}
		if c.Limit != 5 {
			t.Errorf("Limit changed to %d", c.Limit)
		}
	}
}

func TestFetchCursor_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cursor  FetchCursor
		wantErr bool
	}{
		{name: "valid", cursor: FetchCursor{Skip: 0, Limit: 10}},
		{name: "valid offset", cursor: FetchCursor{Skip: 500, Limit: 100}},
		{name: "negative skip", cursor: FetchCursor{Skip: -1, Limit: 10}, wantErr: true},
		{name: "zero limit", cursor: FetchCursor{Skip: 0, Limit: 0}, wantErr: true},
		{name: "negative limit", cursor: FetchCursor{Skip: 0, Limit: -3}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cursor.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSlugRecord_JSONFieldNames(t *testing.T) {
	payload := `{"slug":"zelda-botw","title":"Breath of the Wild","consoleName":"Switch","genre":"Adventure"}`

	var rec SlugRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if rec.Slug != "zelda-botw" || rec.ConsoleName != "Switch" || rec.Genre != "Adventure" {
		t.Errorf("decoded record = %+v", rec)
	}
}
