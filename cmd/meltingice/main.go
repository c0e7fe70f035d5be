// Command meltingice sanitizes a draft incident locally and optionally
// submits the result to an API server. The draft never leaves the
// machine unless sanitization succeeds and -submit is given.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/Ichiritzu/MeltingICE/internal/core/domain"
)

type draftFile struct {
	Lat         *float64 `json:"lat"`
	Lng         *float64 `json:"lng"`
	EventTime   string   `json:"event_time"`
	City        string   `json:"city"`
	State       string   `json:"state"`
	Tag         string   `json:"tag"`
	Description string   `json:"description"`
	Attachments int      `json:"attachments"`
}

func main() {
	draftPath := flag.String("file", "draft.json", "path to the draft incident JSON")
	submit := flag.Bool("submit", false, "POST the sanitized payload to the API")
	serverAddr := flag.String("server", "http://localhost:8080", "MeltingICE API address")
	flag.Parse()

	raw, err := os.ReadFile(*draftPath)
	if err != nil {
		log.Fatalf("❌ error reading draft: %v", err)
	}

	var draft draftFile
	if err := json.Unmarshal(raw, &draft); err != nil {
		log.Fatalf("❌ error parsing draft: %v", err)
	}

	sanitized, err := domain.Sanitize(domain.DraftIncident{
		Lat:              draft.Lat,
		Lng:              draft.Lng,
		EventTime:        draft.EventTime,
		City:             draft.City,
		State:            draft.State,
		Tag:              domain.ReportTag(draft.Tag),
		Description:      draft.Description,
		AttachmentsCount: draft.Attachments,
	})
	if err != nil {
		var rejection domain.Rejection
		if errors.As(err, &rejection) {
			fmt.Printf("🚫 REJECTED: %s\n", rejection)
			switch rejection {
			case domain.RejectMissingLocation:
				fmt.Println("   The draft needs both lat and lng.")
			case domain.RejectDescriptionTooShort:
				fmt.Printf("   Describe what you saw in at least %d characters.\n", domain.MinDescriptionLength)
			case domain.RejectUnsafeContent:
				fmt.Println("   The description contains content that cannot be published.")
			}
			os.Exit(1)
		}
		log.Fatalf("❌ draft could not be processed: %v", err)
	}

	payload, err := json.MarshalIndent(sanitized, "", "  ")
	if err != nil {
		log.Fatalf("❌ error encoding payload: %v", err)
	}

	fmt.Println("✅ Sanitized payload:")
	fmt.Println(string(payload))

	if !*submit {
		return
	}

	fmt.Printf("\n📤 Submitting to %s...\n", *serverAddr)
	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Post(*serverAddr+"/api/v1/reports", "application/json", bytes.NewReader(payload))
	if err != nil {
		log.Fatalf("❌ submit failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated {
		fmt.Printf("❌ server rejected the report (%d): %s\n", resp.StatusCode, string(body))
		os.Exit(1)
	}
	fmt.Printf("✅ Report accepted: %s\n", string(body))
}
