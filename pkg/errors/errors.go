package errors

import "fmt"

// Error codes for the gamification engine core.
const (
	// Evaluation errors
	ErrCodeExpression       = "EXPRESSION_ERROR"
	ErrCodeUnknownVariable  = "UNKNOWN_VARIABLE"
	ErrCodePermissionDenied = "PERMISSION_DENIED"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeStore            = "STORE_ERROR"

	// Catalog errors
	ErrCodeAchievementNotFound = "ACHIEVEMENT_NOT_FOUND"
	ErrCodeGoalNotFound        = "GOAL_NOT_FOUND"
	ErrCodeVariableNotFound    = "VARIABLE_NOT_FOUND"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"

	// Config errors
	ErrCodeConfigInvalid  = "CONFIG_INVALID"
	ErrCodeConfigNotFound = "CONFIG_NOT_FOUND"

	// Reward integration errors
	ErrCodeRewardGrantFailed = "REWARD_GRANT_FAILED"

	// Validation errors
	ErrCodeValidationFailed = "VALIDATION_FAILED"
)

// EngineError represents an error raised by the evaluation core.
type EngineError struct {
	Code    string
	Message string
	Err     error
}

func (e *EngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// IsConflict reports whether err is an EngineError with ErrCodeConflict — a
// duplicate-key level award. Callers treat this as "already awarded by a
// concurrent evaluator", not a failure.
func IsConflict(err error) bool {
	var engineErr *EngineError
	if ok := AsEngineError(err, &engineErr); !ok {
		return false
	}
	return engineErr.Code == ErrCodeConflict
}

// IsExpression reports whether err is an EngineError with ErrCodeExpression. A goal
// whose condition or threshold fails to evaluate degrades to achieved=false, value=0
// rather than failing the whole achievement evaluation; callers use this to tell that
// degradation apart from store failures, which always propagate.
func IsExpression(err error) bool {
	var engineErr *EngineError
	if ok := AsEngineError(err, &engineErr); !ok {
		return false
	}
	return engineErr.Code == ErrCodeExpression
}

// AsEngineError is a thin wrapper over errors.As for *EngineError, kept local so
// callers outside this package don't need to import the standard errors package just
// to unwrap an EngineError.
func AsEngineError(err error, target **EngineError) bool {
	for err != nil {
		if e, ok := err.(*EngineError); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// NewEngineError creates a new EngineError.
func NewEngineError(code, message string, err error) *EngineError {
	return &EngineError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Domain-specific error constructors

// NewExpressionError reports a malformed or unbound-identifier expression.
// When it comes from a goal's condition or threshold, achievement evaluation counts
// that goal as achieved=false, value=0 and logs the error at Warn; the error itself is
// not returned to the caller of the achievement evaluation.
func NewExpressionError(source string, err error) *EngineError {
	return &EngineError{
		Code:    ErrCodeExpression,
		Message: fmt.Sprintf("invalid expression: %s", source),
		Err:     err,
	}
}

// NewUnknownVariableError reports increase_value against an unregistered variable name.
func NewUnknownVariableError(name string) *EngineError {
	return &EngineError{
		Code:    ErrCodeUnknownVariable,
		Message: fmt.Sprintf("unknown variable: %s", name),
	}
}

// NewPermissionDeniedError reports that may_increase denied a variable update.
func NewPermissionDeniedError(variableName, requestingUserID string) *EngineError {
	return &EngineError{
		Code:    ErrCodePermissionDenied,
		Message: fmt.Sprintf("user %s may not increase variable %s", requestingUserID, variableName),
	}
}

// NewConflictError reports a duplicate-key level award. Callers that see this error
// should treat the level as already awarded by a concurrent evaluator and re-read state.
func NewConflictError(userID, achievementID string, level int) *EngineError {
	return &EngineError{
		Code:    ErrCodeConflict,
		Message: fmt.Sprintf("level %d already awarded for user %s achievement %s", level, userID, achievementID),
	}
}

// NewStoreError wraps a persistence failure.
func NewStoreError(operation string, err error) *EngineError {
	return &EngineError{
		Code:    ErrCodeStore,
		Message: fmt.Sprintf("store error during %s", operation),
		Err:     err,
	}
}

// NewAchievementNotFoundError reports a missing achievement in the catalog.
func NewAchievementNotFoundError(achievementID string) *EngineError {
	return &EngineError{
		Code:    ErrCodeAchievementNotFound,
		Message: fmt.Sprintf("achievement not found: %s", achievementID),
	}
}

// NewGoalNotFoundError reports a missing goal in the catalog.
func NewGoalNotFoundError(goalID string) *EngineError {
	return &EngineError{
		Code:    ErrCodeGoalNotFound,
		Message: fmt.Sprintf("goal not found: %s", goalID),
	}
}

// NewVariableNotFoundError reports a missing variable in the registry.
func NewVariableNotFoundError(name string) *EngineError {
	return &EngineError{
		Code:    ErrCodeVariableNotFound,
		Message: fmt.Sprintf("variable not found: %s", name),
	}
}

// NewUserNotFoundError reports a missing user.
func NewUserNotFoundError(userID string) *EngineError {
	return &EngineError{
		Code:    ErrCodeUserNotFound,
		Message: fmt.Sprintf("user not found: %s", userID),
	}
}

// NewConfigInvalidError reports invalid catalog configuration.
func NewConfigInvalidError(reason string) *EngineError {
	return &EngineError{
		Code:    ErrCodeConfigInvalid,
		Message: fmt.Sprintf("invalid configuration: %s", reason),
	}
}

// NewRewardGrantFailedError wraps a reward-grant failure from the external economy client.
func NewRewardGrantFailedError(rewardType, rewardID string, err error) *EngineError {
	return &EngineError{
		Code:    ErrCodeRewardGrantFailed,
		Message: fmt.Sprintf("failed to grant %s reward: %s", rewardType, rewardID),
		Err:     err,
	}
}

// NewValidationFailedError reports a catalog field validation failure.
func NewValidationFailedError(field, reason string) *EngineError {
	return &EngineError{
		Code:    ErrCodeValidationFailed,
		Message: fmt.Sprintf("validation failed for %s: %s", field, reason),
	}
}
