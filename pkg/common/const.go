package common

const (
	KEY_FIXTURE_SCHEDULES = "fixture:schedules:%s"
	KEY_FIXTURE_RULES     = "fixture:rules:%s"
)

const (
	FIXTURE_VERSION = "1.0"
)

const (
	KEY_LOG_HOOK_SEND_ALERT = "send_alert"
)

const (
	HEADER_TENANT_ID = "X-Tenant-ID"
)
