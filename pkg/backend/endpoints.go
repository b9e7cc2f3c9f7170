package backend

const (
	PathSendOTP   = "/auth/send-otp"
	PathVerifyOTP = "/auth/verify-otp"
	PathProfile   = "/user/profile"

	PathSubscriptionPlans   = "/subscription/plans"
	PathSubscriptionCreate  = "/subscription/create"
	PathSubscriptionStatus  = "/subscription/status/{id}"
	PathSubscriptionCapture = "/subscription/capture"

	PathVerificationStatus = "/driver/verification-status"

	PathVideoModules  = "/videos/modules"
	PathWatchActivity = "/videos/watch-activity"
	PathQuizSubmit    = "/quiz/submit"
	PathCertificate   = "/certificate/generate"

	PathJobs       = "/jobs"
	PathJobApply   = "/jobs/{id}/apply"
	PathJobsImport = "/jobs/import"

	PathCallbackRequest = "/support/callback-request"
)
