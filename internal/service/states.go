package service

type ResponseState string

const (
	StateRegistered           ResponseState = "REGISTERED"
	StateLoginCodeSent        ResponseState = "LOGIN_CODE_SENT"
	StateLoggedIn             ResponseState = "LOGGED_IN"
	StateLoggedOut            ResponseState = "LOGGED_OUT"
	StatePhoneVerified        ResponseState = "PHONE_VERIFIED"
	StatePhoneAlreadyVerified ResponseState = "PHONE_ALREADY_VERIFIED"
	StateVerificationSMSSent  ResponseState = "VERIFICATION_SMS_SENT"
	StateUserRetrieved        ResponseState = "USER_RETRIEVED"
	StateHealthCheck          ResponseState = "HEALTH_CHECK"
	StateUsersFound           ResponseState = "USERS_FOUND"
	StateNoResultsFound       ResponseState = "NO_RESULTS_FOUND"
)

var stateMessages = map[ResponseState]string{
	StateRegistered:           "User registered successfully. Please check your phone to verify your account.",
	StateLoginCodeSent:        "A login code has been sent to your phone.",
	StateLoggedIn:             "Login successful",
	StateLoggedOut:            "Logged out successfully",
	StatePhoneVerified:        "Phone verified successfully.",
	StatePhoneAlreadyVerified: "Phone already verified.",
	StateVerificationSMSSent:  "Verification SMS has been sent.",
	StateUserRetrieved:        "User retrieved successfully.",
	StateHealthCheck:          "Server is healthy and running.",
	StateUsersFound:           "Users found matching your search.",
	StateNoResultsFound:       "No users found matching your search.",
}

func (s ResponseState) Message() string {
	return stateMessages[s]
}
