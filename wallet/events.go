package wallet

import (
	evbus "github.com/asaskevich/EventBus"
)

// TopicKeystoreChanged is published whenever the active account of the
// keyring may have changed.
const TopicKeystoreChanged = "wallet:keystore_changed"

// NewBus returns the bus the keyring publishes on and providers subscribe to.
func NewBus() evbus.Bus {
	return evbus.New()
}

// NotifyKeystoreChanged publishes a keystore change, as the extension does
// when the user switches accounts.
func NotifyKeystoreChanged(bus evbus.Bus) {
	bus.Publish(TopicKeystoreChanged)
}
