package youtube

import (
	"encoding/json"
)

// ErrorKind selects the reason table used to classify an upstream failure
type ErrorKind string

const (
	KindQuota      ErrorKind = "quota"
	KindChannel    ErrorKind = "channel"
	KindVideo      ErrorKind = "video"
	KindComments   ErrorKind = "comments"
	KindModeration ErrorKind = "moderation"
)

// Outcome groups upstream reasons by how callers react to them
type Outcome string

const (
	OutcomeQuotaExceeded Outcome = "quota_exceeded"
	OutcomeNotFound      Outcome = "not_found"
	OutcomeForbidden     Outcome = "forbidden"
	OutcomeDisabled      Outcome = "disabled"
	OutcomeInvalid       Outcome = "invalid"
	OutcomeUnauthorized  Outcome = "unauthorized"
	OutcomeUnknown       Outcome = "unknown"
)

const (
	ReasonQuotaExceeded      = "quotaExceeded"
	ReasonDailyLimitExceeded = "dailyLimitExceeded"
)

const (
	MessageQuotaExceeded = "Kuota YouTube API telah habis. Silakan coba lagi besok."
	GenericErrorMessage  = "Terjadi kesalahan saat menghubungi YouTube. Silakan coba lagi nanti."
)

// Classification is the structured result of classifying a failed response
type Classification struct {
	Known         bool    `json:"known"`
	Reason        string  `json:"reason,omitempty"`
	Outcome       Outcome `json:"outcome"`
	Message       string  `json:"message"`
	QuotaExceeded bool    `json:"quota_exceeded,omitempty"`
}

type reasonEntry struct {
	outcome Outcome
	message string
}

var quotaReasons = map[string]reasonEntry{
	ReasonQuotaExceeded:      {OutcomeQuotaExceeded, MessageQuotaExceeded},
	ReasonDailyLimitExceeded: {OutcomeQuotaExceeded, MessageQuotaExceeded},
}

var reasonTables = map[ErrorKind]map[string]reasonEntry{
	KindQuota: {},
	KindChannel: {
		"channelNotFound":         {OutcomeNotFound, "Channel YouTube tidak ditemukan."},
		"youtubeSignupRequired":   {OutcomeNotFound, "Akun Google Anda belum memiliki channel YouTube."},
		"forbidden":               {OutcomeForbidden, "Akses ke channel YouTube ditolak."},
		"insufficientPermissions": {OutcomeForbidden, "Izin akses YouTube tidak mencukupi. Silakan login ulang."},
	},
	KindVideo: {
		"videoNotFound":              {OutcomeNotFound, "Video tidak ditemukan."},
		"playlistNotFound":           {OutcomeNotFound, "Daftar video channel tidak ditemukan."},
		"playlistItemsNotAccessible": {OutcomeForbidden, "Daftar video channel tidak dapat diakses."},
		"forbidden":                  {OutcomeForbidden, "Akses ke video ditolak."},
	},
	KindComments: {
		"commentsDisabled": {OutcomeDisabled, "Komentar dinonaktifkan untuk video ini."},
		"videoNotFound":    {OutcomeNotFound, "Video tidak ditemukan."},
		"forbidden":        {OutcomeForbidden, "Akses ke komentar video ditolak."},
	},
	KindModeration: {
		"commentNotFound":         {OutcomeNotFound, "Komentar tidak ditemukan."},
		"forbidden":               {OutcomeForbidden, "Anda tidak memiliki izin untuk memoderasi komentar ini."},
		"banWithoutReject":        {OutcomeInvalid, "Pemblokiran penulis hanya dapat dilakukan saat komentar ditolak."},
		"invalidModerationStatus": {OutcomeInvalid, "Status moderasi tidak valid."},
		"processingFailure":       {OutcomeInvalid, "YouTube gagal memproses permintaan moderasi."},
	},
}

// ExtractReason returns error.errors[0].reason of an upstream error body, or
// an empty string when the body has no such field.
func ExtractReason(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var envelope ErrorBody
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	if len(envelope.Error.Errors) == 0 {
		return ""
	}
	return envelope.Error.Errors[0].Reason
}

// Classify maps a failed response to a user-safe message. quotaExceeded is
// recognized for every kind.
func Classify(kind ErrorKind, resp *Response) Classification {
	var body []byte
	if resp != nil {
		body = resp.Body
	}
	return ClassifyReason(kind, ExtractReason(body))
}

// ClassifyReason classifies an already extracted reason
func ClassifyReason(kind ErrorKind, reason string) Classification {
	if entry, ok := quotaReasons[reason]; ok {
		return Classification{
			Known:         true,
			Reason:        reason,
			Outcome:       entry.outcome,
			Message:       entry.message,
			QuotaExceeded: true,
		}
	}

	if entry, ok := reasonTables[kind][reason]; ok && reason != "" {
		return Classification{
			Known:   true,
			Reason:  reason,
			Outcome: entry.outcome,
			Message: entry.message,
		}
	}

	return Classification{
		Known:   false,
		Reason:  reason,
		Outcome: OutcomeUnknown,
		Message: GenericErrorMessage,
	}
}

// IsQuotaExceeded reports whether a response signals exhausted upstream quota
func IsQuotaExceeded(resp *Response) bool {
	return Classify(KindQuota, resp).QuotaExceeded
}
