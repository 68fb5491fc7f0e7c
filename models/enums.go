package models

import (
	"errors"
	"strconv"
)

type DeliveryNoteStatus string

const (
	DeliveryNoteStatusDraft     DeliveryNoteStatus = "Draft"
	DeliveryNoteStatusValidated DeliveryNoteStatus = "Validated"
	DeliveryNoteStatusAnomaly   DeliveryNoteStatus = "Anomaly"
	DeliveryNoteStatusArchived  DeliveryNoteStatus = "Archived"
)

func (s DeliveryNoteStatus) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(string(s))), nil
}

func (s *DeliveryNoteStatus) UnmarshalJSON(data []byte) error {
	str, err := strconv.Unquote(string(data))
	if err != nil {
		return errors.New("delivery note status must be string")
	}
	switch str {
	case "Draft":
		*s = DeliveryNoteStatusDraft
	case "Validated":
		*s = DeliveryNoteStatusValidated
	case "Anomaly":
		*s = DeliveryNoteStatusAnomaly
	case "Archived":
		*s = DeliveryNoteStatusArchived
	default:
		return errors.New("invalid delivery note status")
	}
	return nil
}

type LineControlStatus string

const (
	LineControlStatusOK               LineControlStatus = "OK"
	LineControlStatusQuantityVariance LineControlStatus = "QuantityVariance"
	LineControlStatusPriceVariance    LineControlStatus = "PriceVariance"
	LineControlStatusMultipleVariance LineControlStatus = "MultipleVariance"
	LineControlStatusUncontrolled     LineControlStatus = "Uncontrolled"
)

func (s LineControlStatus) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(string(s))), nil
}

func (s *LineControlStatus) UnmarshalJSON(data []byte) error {
	str, err := strconv.Unquote(string(data))
	if err != nil {
		return errors.New("line control status must be string")
	}
	lineControlStatuses := map[string]LineControlStatus{
		"OK":               LineControlStatusOK,
		"QuantityVariance": LineControlStatusQuantityVariance,
		"PriceVariance":    LineControlStatusPriceVariance,
		"MultipleVariance": LineControlStatusMultipleVariance,
		"Uncontrolled":     LineControlStatusUncontrolled,
	}
	var ok bool
	*s, ok = lineControlStatuses[str]
	if !ok {
		return errors.New("invalid line control status")
	}
	return nil
}

type ControlAlertKind string

const (
	ControlAlertKindQuantityVariance ControlAlertKind = "QuantityVariance"
	ControlAlertKindPriceVariance    ControlAlertKind = "PriceVariance"
	ControlAlertKindUnknownProduct   ControlAlertKind = "UnknownProduct"
	ControlAlertKindMissingPrice     ControlAlertKind = "MissingPrice"
)

func (k ControlAlertKind) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(string(k))), nil
}

func (k *ControlAlertKind) UnmarshalJSON(data []byte) error {
	str, err := strconv.Unquote(string(data))
	if err != nil {
		return errors.New("control alert kind must be string")
	}
	switch str {
	case "QuantityVariance":
		*k = ControlAlertKindQuantityVariance
	case "PriceVariance":
		*k = ControlAlertKindPriceVariance
	case "UnknownProduct":
		*k = ControlAlertKindUnknownProduct
	case "MissingPrice":
		*k = ControlAlertKindMissingPrice
	default:
		return errors.New("invalid control alert kind")
	}
	return nil
}

type ControlRunStatus string

const (
	ControlRunStatusStarted   ControlRunStatus = "STARTED"
	ControlRunStatusSucceeded ControlRunStatus = "SUCCEEDED"
	ControlRunStatusFailed    ControlRunStatus = "FAILED"
)
