package service

import (
	"fmt"

	apperrors "github.com/ab65ed/soaledu.ir-sub005/internal/pkg/errors"
)

// Ошибки сервисного слоя покупки экзаменов
var (
	// ErrPurchaseAlreadyRecorded - покупка экзамена уже зафиксирована (возможно, другим инстансом)
	ErrPurchaseAlreadyRecorded = fmt.Errorf("exam purchase already recorded: %w", apperrors.ErrConflict)

	// ErrRepetitionStateLost - экзамен куплен, но журнал повторов утерян (рестарт или очистка)
	ErrRepetitionStateLost = fmt.Errorf("repetition state lost for purchased exam: %w", apperrors.ErrNotFound)

	// ErrDrawNotFound - выдача вопросов с таким идентификатором не найдена или истекла
	ErrDrawNotFound = fmt.Errorf("exam draw not found or expired: %w", apperrors.ErrNotFound)

	// ErrImportFile - файл импорта не читается или не содержит данных
	ErrImportFile = fmt.Errorf("invalid import file: %w", apperrors.ErrValidation)
)
