package activity

import (
	"fmt"

	"cartsaver/internal/models"
)

// AppInstalled is recorded when a shop installs and is provisioned
func AppInstalled(shop string) Event {
	return Event{
		Shop:        shop,
		Type:        models.ActivityAppInstalled,
		Title:       "App installed successfully",
		Description: "CartSaver was installed and configured",
		Metadata:    models.Metadata{"shop": shop},
	}
}

// AppUninstalled is recorded when the platform reports an uninstall
func AppUninstalled(shop string) Event {
	return Event{
		Shop:        shop,
		Type:        models.ActivityAppUninstalled,
		Title:       "App uninstalled",
		Description: "Shop deactivated, cart history retained",
		Metadata:    models.Metadata{"shop": shop},
		Severity:    models.SeverityInfo,
	}
}

// CartsSynced is recorded after a reconciliation run that created carts
func CartsSynced(shop string, synced, total, errors int) Event {
	description := fmt.Sprintf("Successfully synced %d new carts from %d total abandoned checkouts", synced, total)
	if errors > 0 {
		description += fmt.Sprintf(" (%d errors)", errors)
	}

	severity := models.SeveritySuccess
	if errors > 0 {
		severity = models.SeverityWarning
	}

	return Event{
		Shop:        shop,
		Type:        models.ActivityCartsSynced,
		Title:       fmt.Sprintf("Synced %d abandoned carts", synced),
		Description: description,
		Metadata:    models.Metadata{"synced": synced, "total": total, "errors": errors, "shop": shop},
		Severity:    severity,
	}
}

// CartRecovered is recorded when an abandoned cart converts to an order
func CartRecovered(shop string, cartID int64, amount float64, currency string) Event {
	return Event{
		Shop:        shop,
		Type:        models.ActivityCartRecovered,
		Title:       "Cart recovered",
		Description: fmt.Sprintf("Recovered abandoned cart worth %.2f %s", amount, currency),
		Metadata:    models.Metadata{"cart_id": cartID, "amount": amount, "shop": shop},
	}
}

// WebhooksSetup is recorded after webhook subscriptions are provisioned
func WebhooksSetup(shop string, count int) Event {
	return Event{
		Shop:        shop,
		Type:        models.ActivityWebhooksSetup,
		Title:       "Webhooks configured",
		Description: fmt.Sprintf("Configured %d webhooks for real-time cart tracking", count),
		Metadata:    models.Metadata{"webhook_count": count, "shop": shop},
	}
}

// SettingsUpdated is recorded when shop settings change
func SettingsUpdated(shop string) Event {
	return Event{
		Shop:        shop,
		Type:        models.ActivitySettingsUpdated,
		Title:       "Settings updated",
		Description: "Shop settings were updated",
		Metadata:    models.Metadata{"shop": shop},
	}
}
