package examcache

import (
	"errors"
	"fmt"

	apperrors "github.com/ab65ed/soaledu.ir-sub005/internal/pkg/errors"
)

var (
	// ErrRepositoryUnavailable - репозиторий вопросов вернул ошибку; запрос не может быть обслужен.
	ErrRepositoryUnavailable = fmt.Errorf("question repository unavailable: %w", apperrors.ErrUnavailable)

	// ErrInsufficientPool - кандидатов меньше, чем запрошено. Возвращается только при RejectInsufficientPool.
	ErrInsufficientPool = errors.New("insufficient question pool")

	// ErrEmptyPool - нет ни одного вопроса; выдавать пустой экзамен нельзя.
	ErrEmptyPool = fmt.Errorf("no questions match the filter: %w", apperrors.ErrNotFound)

	// ErrRepetitionNotFound - экзамен с таким идентификатором не покупался этим учащимся.
	ErrRepetitionNotFound = fmt.Errorf("exam instance has no repetition ledger: %w", apperrors.ErrNotFound)

	// ErrRepetitionLimitExceeded - достигнут лимит повторов.
	ErrRepetitionLimitExceeded = fmt.Errorf("repetition limit exceeded: %w", apperrors.ErrForbidden)

	// ErrDuplicateLedger - журнал для экзамена уже существует. Наружу не пробрасывается.
	ErrDuplicateLedger = errors.New("repetition ledger already exists")

	// ErrStaleDraw - выдача устарела: после неё учащийся уже купил экзамен предмета,
	// и её вопросы пересекаются с купленными. Клиент должен запросить вопросы заново.
	ErrStaleDraw = fmt.Errorf("exam draw is stale: %w", apperrors.ErrConflict)

	// ErrInvalidRequest - некорректные параметры запроса.
	ErrInvalidRequest = fmt.Errorf("invalid exam request: %w", apperrors.ErrValidation)
)

func invalidRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
