// Package sl содержит вспомогательные функции для структурированного логирования через slog.
package sl

import "log/slog"

// Err возвращает slog.Attr с ключом "error" и текстом ошибки.
// Для nil возвращает пустое значение, чтобы вызов был безопасен в defer-блоках.
//
// Пример:
//
//	log.Error("failed to sync user", sl.Err(err))
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{Key: "error", Value: slog.StringValue("")}
	}
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}

// Op возвращает атрибут с именем операции в формате "package.Func".
func Op(op string) slog.Attr {
	return slog.String("op", op)
}

// Critical помечает запись как аномалию, требующую ручного вмешательства.
func Critical() slog.Attr {
	return slog.String("severity", "critical")
}
