package store

import (
	"encoding/json"
	"fmt"

	"nocturne/internal/story"
)

// Row codecs shared by the SQL backends. Choices and string sets are stored
// as JSON columns; the schema keeps scalar fields as real columns so they
// stay queryable.

type choiceRecord struct {
	ID               string         `json:"id"`
	Label            string         `json:"label"`
	PointsReward     int            `json:"points_reward,omitempty"`
	Unlocks          []string       `json:"unlocks,omitempty"`
	ArchetypeWeights map[string]int `json:"archetype_weights,omitempty"`
	DestinationID    string         `json:"destination_id,omitempty"`
}

func EncodeChoices(choices []story.Choice) ([]byte, error) {
	records := make([]choiceRecord, 0, len(choices))
	for _, choice := range choices {
		records = append(records, choiceRecord{
			ID:               choice.ID,
			Label:            choice.Label,
			PointsReward:     choice.PointsReward,
			Unlocks:          choice.Unlocks,
			ArchetypeWeights: choice.ArchetypeWeights,
			DestinationID:    choice.DestinationID,
		})
	}
	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("marshaling choices: %w", err)
	}
	return data, nil
}

func DecodeChoices(data []byte) ([]story.Choice, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var records []choiceRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("unmarshaling choices: %w", err)
	}
	choices := make([]story.Choice, 0, len(records))
	for _, record := range records {
		choices = append(choices, story.Choice{
			ID:               record.ID,
			Label:            record.Label,
			PointsReward:     record.PointsReward,
			Unlocks:          record.Unlocks,
			ArchetypeWeights: record.ArchetypeWeights,
			DestinationID:    record.DestinationID,
		})
	}
	return choices, nil
}

func EncodeStrings(values []string) ([]byte, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("marshaling string list: %w", err)
	}
	return data, nil
}

func DecodeStrings(data []byte) ([]string, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("unmarshaling string list: %w", err)
	}
	return values, nil
}
