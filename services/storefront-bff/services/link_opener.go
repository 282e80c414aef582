package services

import (
	"context"

	"github.com/jewelrybyluna/storefront/services/storefront-bff/models"
)

// LinkOpener decides how the shopper is sent to the messaging deep link.
type LinkOpener interface {
	Open(ctx context.Context, url string) models.Redirect
}

// DeviceClassifier reports whether the request comes from a mobile-class client.
type DeviceClassifier interface {
	IsMobile(ctx context.Context) bool
}

// WindowOpener tries to open url in a new window. A non-nil error means the open was blocked.
type WindowOpener func(ctx context.Context, url string) error

// DeviceAwareOpener navigates directly on mobile and opens a new window on desktop. The
// desktop redirect always carries the link as a manual fallback.
type DeviceAwareOpener struct {
	classifier DeviceClassifier
	window     WindowOpener
}

func NewDeviceAwareOpener(classifier DeviceClassifier, window WindowOpener) *DeviceAwareOpener {
	return &DeviceAwareOpener{classifier: classifier, window: window}
}

func (o *DeviceAwareOpener) Open(ctx context.Context, url string) models.Redirect {
	if o.classifier != nil && o.classifier.IsMobile(ctx) {
		return models.Redirect{Mode: models.RedirectNavigate, URL: url}
	}

	redirect := models.Redirect{Mode: models.RedirectNewWindow, URL: url, FallbackURL: url}
	if o.window != nil {
		if err := o.window(ctx, url); err != nil {
			redirect.Blocked = true
		}
	}
	return redirect
}
