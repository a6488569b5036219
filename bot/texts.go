package bot

// User-visible dialog strings. Failures surface here as natural-language
// replies, never as raw error payloads.
const (
	textStart = "Привет! Я бот общежития. Я слежу за составом беседы по таблице заселения.\n\n" +
		"Для получения списка команд напишите /help"

	textHelp = "Команды бота:\n\n" +
		"/help - получение списка команд\n" +
		"/global_mute - переключение состояния блокировки сообщений в беседе\n" +
		"/send_join_extended_message - отправить расширенное приветствие\n" +
		"/del - удалить сообщение (ответом)\n" +
		"/mute [минуты] - замутить пользователя (ответом), без аргумента - навсегда\n" +
		"/unmute - снять мут (ответом)"

	textPrivateHelp = "Команды обслуживания базы:\n\n" +
		"/show_notes - замечания к заполнению таблицы\n" +
		"/show_need_kick - кто лишний в беседе\n" +
		"/show_need_invite - кого не хватает в беседе\n" +
		"/kick_users_from_conversation - исключить лишних\n" +
		"/update_statuses - обновить статусы нахождения в беседе\n" +
		"/update_links - исправить ссылки на профили"

	textCommandDenied    = "Это не твой уровень, дорогой... :D"
	textPrivateDenied    = "Приватные команды доступны только администраторам беседы."
	textTagAllDenied     = "Использовать тег @all могут только администраторы!"
	textUnknownCommand   = "Отправлена неизвестная команда!\n\nДля получения списка всех команд напишите /help"
	textNotReplyMessage  = "Команда должна быть отправлена ответом на сообщение!"
	textMuteTimeError    = "Неверно указано время мута! Укажите число минут."
	textMuteNotFound     = "Пользователь не найден в базе данных!"
	textUnmuteSuccess    = "Мут снят!"
	textNoUsersRequested = "Нет пользователей по запросу!"

	textJoin         = "%s присоединяется к беседе!"
	textLeft         = "%s покидает беседу!"
	textExtendedJoin = "Рекомендуется отключить уведомления в беседе, дабы вас не беспокоили неважные сообщения.\n\n" +
		"Важные сообщения будут помечаться администраторами тегом @all и вы будете получать уведомления."

	textGlobalMute = "Отправка сообщений в беседе %s!"
	textLocked     = "заблокирована"
	textUnlocked   = "разблокирована"

	textMuteForever = "Мут для %s установлен навсегда!"
	textMuteUntil   = "Мут для %s установлен до: %s"

	textUpdatedStatuses = "Обновлено статусов: %d"
	textUpdatedLinks    = "Обновлено ссылок: %d"
	textNoNotes         = "Замечаний к таблице нет."
)
