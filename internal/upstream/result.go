package upstream

import "fmt"

// Result is the remote's status code for connects, logons and acknowledgements
type Result int

// Result codes used by the session
const (
	ResultInvalid                         Result = 0
	ResultOK                              Result = 1
	ResultFail                            Result = 2
	ResultNoConnection                    Result = 3
	ResultInvalidPassword                 Result = 5
	ResultServiceUnavailable              Result = 20
	ResultTimeout                         Result = 16
	ResultBanned                          Result = 17
	ResultAccountNotFound                 Result = 18
	ResultFileNotFound                    Result = 9
	ResultInvalidProtocolVersion          Result = 7
	ResultTryAnotherCM                    Result = 48
	ResultAccountLogonDenied              Result = 63
	ResultInvalidLoginAuthCode            Result = 65
	ResultAccountDisabled                 Result = 43
	ResultRateLimitExceeded               Result = 84
	ResultAccountLoginDeniedNeedTwoFactor Result = 85
	ResultTwoFactorCodeMismatch           Result = 88
)

var resultNames = map[Result]string{
	ResultInvalid:                         "Invalid",
	ResultOK:                              "OK",
	ResultFail:                            "Fail",
	ResultNoConnection:                    "NoConnection",
	ResultInvalidPassword:                 "InvalidPassword",
	ResultServiceUnavailable:              "ServiceUnavailable",
	ResultTimeout:                         "Timeout",
	ResultBanned:                          "Banned",
	ResultAccountNotFound:                 "AccountNotFound",
	ResultFileNotFound:                    "FileNotFound",
	ResultInvalidProtocolVersion:          "InvalidProtocolVersion",
	ResultTryAnotherCM:                    "TryAnotherCM",
	ResultAccountLogonDenied:              "AccountLogonDenied",
	ResultInvalidLoginAuthCode:            "InvalidLoginAuthCode",
	ResultAccountDisabled:                 "AccountDisabled",
	ResultRateLimitExceeded:               "RateLimitExceeded",
	ResultAccountLoginDeniedNeedTwoFactor: "AccountLoginDeniedNeedTwoFactor",
	ResultTwoFactorCodeMismatch:           "TwoFactorCodeMismatch",
}

func (r Result) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Result(%d)", int(r))
}

// Permanent reports results no reconnect can fix
func (r Result) Permanent() bool {
	return r == ResultInvalidProtocolVersion
}

// Retryable reports whether a failed logon with this result may succeed
// later without operator action
func (r Result) Retryable() bool {
	switch r {
	case ResultInvalidPassword, ResultBanned, ResultAccountNotFound, ResultAccountDisabled:
		return false
	}
	return true
}
