package trackstore

import "testing"

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Dir: "/data", ChunkSize: 64, TrackSize: 64*4 + trackHeaderSize}, false},
		{"valid with default chunk size", Config{Dir: "/data", TrackSize: DefaultChunkSize*4 + trackHeaderSize}, false},
		{"empty dir", Config{Dir: "", ChunkSize: 64, TrackSize: 64*4 + trackHeaderSize}, true},
		{"chunk size too small", Config{Dir: "/data", ChunkSize: 4, TrackSize: 100}, true},
		{"track size too small", Config{Dir: "/data", ChunkSize: 64, TrackSize: 10}, true},
		{"track size not a multiple of chunk size", Config{Dir: "/data", ChunkSize: 64, TrackSize: 64*4 + trackHeaderSize + 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !IsValidationError(err) {
				t.Errorf("Validate() error type = %T, want ValidationError", err)
			}
		})
	}
}

func TestConfig_NilValidate(t *testing.T) {
	var cfg *Config
	if err := cfg.Validate(); !IsValidationError(err) {
		t.Fatalf("nil Config.Validate(): got %v, want ValidationError", err)
	}
}
