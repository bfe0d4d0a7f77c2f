package bluetooth

const (
	BLUETOOTH_PREFIX  = "org.bluez"
	BLUETOOTH_ADAPTER = BLUETOOTH_PREFIX + ".Adapter1"

	BLUEZ_PATH      = "/org/bluez"
	DEFAULT_ADAPTER = "hci0"
)

type BluetoothState string

const (
	BT_STATE_POWERED      BluetoothState = "Powered"
	BT_STATE_DISCOVERABLE BluetoothState = "Discoverable"
)

func (b BluetoothState) toString() string {
	return string(b)
}
