package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/pkordes/fleet-playback/internal/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// batch is the document ingest reads: one trip and the fixes of its car.
type batch struct {
	Trip      tripInput       `json:"trip"`
	Positions []positionInput `json:"positions" validate:"required,min=1,dive"`
}

type tripInput struct {
	CarID     uuid.UUID  `json:"carId" validate:"required"`
	Name      string     `json:"name" validate:"required,max=200"`
	StartedAt time.Time  `json:"startedAt" validate:"required"`
	EndedAt   *time.Time `json:"endedAt" validate:"omitempty,gtfield=StartedAt"`
}

type positionInput struct {
	Lat        float64   `json:"lat" validate:"latitude"`
	Lng        float64   `json:"lng" validate:"longitude"`
	SpeedKmh   *float64  `json:"speedKmh" validate:"omitempty,gte=0"`
	FuelLevelL *float64  `json:"fuelLevelL" validate:"omitempty,gte=0"`
	RecordedAt time.Time `json:"recordedAt" validate:"required"`
}

// readBatch decodes and validates a batch. Unknown fields are rejected so
// typos in hand-written files do not silently drop data.
func readBatch(r io.Reader) (domain.Trip, []domain.Position, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var b batch
	if err := dec.Decode(&b); err != nil {
		return domain.Trip{}, nil, fmt.Errorf("%w: decode: %v", domain.ErrValidation, err)
	}
	if err := validate.Struct(b); err != nil {
		return domain.Trip{}, nil, fmt.Errorf("%w: %s", domain.ErrValidation, describe(err))
	}

	trip := domain.Trip{
		CarID:     b.Trip.CarID,
		Name:      strings.TrimSpace(b.Trip.Name),
		StartedAt: b.Trip.StartedAt,
		EndedAt:   b.Trip.EndedAt,
	}
	positions := make([]domain.Position, len(b.Positions))
	for i, p := range b.Positions {
		positions[i] = domain.Position{
			CarID:      trip.CarID,
			Latitude:   p.Lat,
			Longitude:  p.Lng,
			SpeedKmh:   p.SpeedKmh,
			FuelLevelL: p.FuelLevelL,
			RecordedAt: p.RecordedAt,
		}
	}
	return trip, positions, nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s fails %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}
