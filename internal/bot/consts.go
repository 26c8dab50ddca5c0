package bot

const (
	quality480   = "480p"
	quality360   = "360p"
	qualityWorst = "worst"

	// callbackDownloadPrefix marks quality-selection callbacks.
	callbackDownloadPrefix = "download_"

	probeTimeoutSeconds = 60
	maxListedUsers      = 20
	maxListedVideos     = 15
	maxMessageLength    = 3500
)
