package dbus

// Standard D-Bus method names
const (
	DBUS_INTERFACE = "org.freedesktop.DBus"
	DBUS_PATH      = "/org/freedesktop/DBus"

	INTROSPECTABLE     = DBUS_INTERFACE + ".Introspectable"
	BUS_NAME_HAS_OWNER = DBUS_INTERFACE + ".NameHasOwner"
	BUS_GET_NAME_OWNER = DBUS_INTERFACE + ".GetNameOwner"
	DBUS_PROP_IFACE    = DBUS_INTERFACE + ".Properties"
	DBUS_OBJECT_MNGR   = DBUS_INTERFACE + ".ObjectManager"

	PROP_GET     = DBUS_PROP_IFACE + ".Get"
	PROP_SET     = DBUS_PROP_IFACE + ".Set"
	PROP_GET_ALL = DBUS_PROP_IFACE + ".GetAll"

	MANAGED_OBJECTS = DBUS_OBJECT_MNGR + ".GetManagedObjects"
)

// Error names that mean the remote service is not there at all.
const (
	ERR_SERVICE_UNKNOWN   = DBUS_INTERFACE + ".Error.ServiceUnknown"
	ERR_NAME_HAS_NO_OWNER = DBUS_INTERFACE + ".Error.NameHasNoOwner"
	ERR_UNKNOWN_OBJECT    = DBUS_INTERFACE + ".Error.UnknownObject"
	ERR_UNKNOWN_METHOD    = DBUS_INTERFACE + ".Error.UnknownMethod"
	ERR_DISCONNECTED      = "org.freedesktop.DBus.Local.Disconnected"
)
