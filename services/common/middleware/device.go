package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
)

type deviceKey struct{}

type popupKey struct{}

// DeviceClass is the coarse client class used to pick a redirect strategy.
type DeviceClass string

const (
	DeviceMobile  DeviceClass = "mobile"
	DeviceDesktop DeviceClass = "desktop"
)

// MobileHintHeader is the User-Agent Client Hint carrying "?1" on mobile browsers.
const MobileHintHeader = "Sec-CH-UA-Mobile"

// PopupHeader is sent as "blocked" by clients whose popup probe failed.
const PopupHeader = "X-Popups"

// DeviceHint records the client's device class on the request context. The class comes
// from the Sec-CH-UA-Mobile client hint, or from an explicit X-Device-Class header sent by
// clients that do not emit hints. Absent both, the client is treated as desktop.
func DeviceHint() gin.HandlerFunc {
	return func(c *gin.Context) {
		class := DeviceDesktop
		if strings.TrimSpace(c.GetHeader(MobileHintHeader)) == "?1" ||
			strings.EqualFold(c.GetHeader("X-Device-Class"), string(DeviceMobile)) {
			class = DeviceMobile
		}
		ctx := WithDeviceClass(c.Request.Context(), class)
		if strings.EqualFold(c.GetHeader(PopupHeader), "blocked") {
			ctx = context.WithValue(ctx, popupKey{}, true)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func WithDeviceClass(ctx context.Context, class DeviceClass) context.Context {
	return context.WithValue(ctx, deviceKey{}, class)
}

// DeviceClassFrom returns the class stored by DeviceHint, defaulting to desktop.
func DeviceClassFrom(ctx context.Context) DeviceClass {
	if class, ok := ctx.Value(deviceKey{}).(DeviceClass); ok {
		return class
	}
	return DeviceDesktop
}

// ClientHintClassifier answers "is this a mobile-class client" from the request context.
type ClientHintClassifier struct{}

func (ClientHintClassifier) IsMobile(ctx context.Context) bool {
	return DeviceClassFrom(ctx) == DeviceMobile
}

// PopupsBlocked reports whether the client said it cannot open new windows.
func PopupsBlocked(ctx context.Context) bool {
	blocked, _ := ctx.Value(popupKey{}).(bool)
	return blocked
}

var ErrPopupBlocked = errors.New("popup blocked by client")

// ClientWindowOpener is a window opener that fails when the client reported blocked popups.
func ClientWindowOpener(ctx context.Context, url string) error {
	if PopupsBlocked(ctx) {
		return ErrPopupBlocked
	}
	return nil
}
