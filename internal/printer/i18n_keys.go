package printer

const (
	keySummaryStatus  = "cli.summary.status"
	keySummaryTime    = "cli.summary.time"
	keySummarySize    = "cli.summary.size"
	keyBodyEmpty      = "cli.body.empty"
	keyBodyTruncate   = "cli.body.truncate_hint"
	keyHeadersTitle   = "cli.headers.title"
	keyErrorTitle     = "cli.error.title"
	keyErrorStore     = "cli.error.store"
	keyListEmpty      = "cli.list.empty"
	keyListMethod     = "cli.list.method"
	keyListURL        = "cli.list.url"
	keyListTitle      = "cli.list.title"
	keyGroupsID       = "cli.groups.id"
	keyGroupsName     = "cli.groups.name"
	keyGroupsBaseURL  = "cli.groups.base_url"
	keyStoredRequest  = "cli.stored.request"
	keyStoredResponse = "cli.stored.response"
)
