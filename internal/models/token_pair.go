package models

import "time"

// TokenPair — пара токенов, выдаваемая при входе и при ротации.
//
// Описание:
//   - AccessToken — короткоживущий JWT для доступа к API; на сервере не хранится,
//     валидность определяется только подписью и сроком;
//   - RefreshToken — долгоживущий JWT, подписанный отдельным секретом; сервер
//     хранит его значение в записи пользователя, действительна ровно одна копия;
//   - AccessExpiresAt — момент истечения access-токена (UTC).
type TokenPair struct {
	AccessToken     string
	RefreshToken    string
	AccessExpiresAt time.Time
}
