// Package i18n translates error and flash codes for display. French is the default.
package i18n

import "strings"

var messages = map[string]map[string]string{
	"fr": {
		// validation
		"required":            "Requis",
		"invalid_price":       "Prix invalide",
		"must_be_positive":    "Doit être positif",
		"invalid_date":        "Date invalide",
		"invalid_time":        "Heure invalide (HH:MM)",
		"invalid_color":       "Couleur invalide (#rrggbb)",
		"invalid_status":      "Statut invalide",
		"invalid_type":        "Type invalide",
		"invalid_id":          "Identifiant invalide",
		"invalid_quantity":    "Quantité invalide",
		"must_be_after_start": "Doit être après le début",
		"not_enough_columns":  "Pas assez de colonnes",
		"name_required":       "Le nom est obligatoire",
		"no_lines":            "Ajoutez au moins une retouche",
		"already_exists":      "Existe déjà",
		"not_found":           "Introuvable",
		"bad_request":         "Requête invalide",
		"internal_error":      "Erreur interne",
		// outcomes
		"ticket_created":             "Ticket enregistré",
		"ticket_updated":             "Ticket mis à jour",
		"ticket_deleted":             "Ticket supprimé",
		"retouche_deleted":           "Retouche supprimée",
		"status_updated":             "Statut mis à jour",
		"notification_sent":          "SMS envoyé au client",
		"notification_no_phone":      "Aucun numéro de téléphone: le client n'a pas été prévenu",
		"notification_failed":        "L'envoi du SMS a échoué, utilisez le lien",
		"saved":                      "Enregistré",
		"deleted":                    "Supprimé",
		"stock_skipped":              "Stock à zéro pour certaines fournitures",
		"import_done":                "Import terminé",
		"conversion_already_applied": "La conversion des prix a déjà été appliquée",
	},
	"en": {
		"required":                   "Required",
		"invalid_price":              "Invalid price",
		"must_be_positive":           "Must be positive",
		"invalid_date":               "Invalid date",
		"invalid_time":               "Invalid time (HH:MM)",
		"invalid_color":              "Invalid color (#rrggbb)",
		"invalid_status":             "Invalid status",
		"invalid_type":               "Invalid type",
		"invalid_id":                 "Invalid id",
		"invalid_quantity":           "Invalid quantity",
		"must_be_after_start":        "Must be after start",
		"not_enough_columns":         "Not enough columns",
		"name_required":              "Name is required",
		"no_lines":                   "Add at least one line",
		"already_exists":             "Already exists",
		"not_found":                  "Not found",
		"bad_request":                "Bad request",
		"internal_error":             "Internal error",
		"ticket_created":             "Ticket saved",
		"ticket_updated":             "Ticket updated",
		"ticket_deleted":             "Ticket deleted",
		"retouche_deleted":           "Line deleted",
		"status_updated":             "Status updated",
		"notification_sent":          "Text message sent",
		"notification_no_phone":      "No phone number: the client was not notified",
		"notification_failed":        "Text message failed, use the link",
		"saved":                      "Saved",
		"deleted":                    "Deleted",
		"stock_skipped":              "Some supplies were already out of stock",
		"import_done":                "Import finished",
		"conversion_already_applied": "Price conversion was already applied",
	},
}

// DetectLanguage picks "en" when the Accept-Language header starts with English, "fr" otherwise.
func DetectLanguage(acceptLanguage string) string {
	al := strings.ToLower(strings.TrimSpace(acceptLanguage))
	if strings.HasPrefix(al, "en") {
		return "en"
	}
	return "fr"
}

// T returns the message for code in lang, falling back to French, then to the code itself.
func T(lang, code string) string {
	if m, ok := messages[lang]; ok {
		if s, ok := m[code]; ok {
			return s
		}
	}
	if s, ok := messages["fr"][code]; ok {
		return s
	}
	return code
}
