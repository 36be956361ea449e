package postgres

const (
	// User queries
	userColumns = `id, email, name, password_hash, role, balance::text, opening_balance::text, version, created_at, updated_at`

	queryInsertUser = `
		INSERT INTO users (id, email, name, password_hash, role, balance, opening_balance)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (email) DO NOTHING
		RETURNING ` + userColumns

	queryGetActiveUsers = `
		SELECT ` + userColumns + `
		FROM users
		WHERE active
		ORDER BY created_at, id`

	queryGetUserById = `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1 AND active`

	queryGetUserByEmail = `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1 AND active`

	// Balance queries
	queryGetUserBalance = `
		SELECT balance::text FROM users WHERE id = $1 AND active`

	// The conditional update is the whole check-and-write: no row comes back
	// when the user is missing or the result would be negative.
	queryApplyDelta = `
		UPDATE users
		SET balance = balance + $1, version = version + 1, updated_at = now()
		WHERE id = $2 AND active AND balance + $1 >= 0
		RETURNING balance::text`

	queryLockUserBalance = `
		SELECT balance::text FROM users WHERE id = $1 AND active FOR UPDATE`

	queryShareUserBalance = `
		SELECT balance::text FROM users WHERE id = $1 AND active FOR SHARE`

	queryReconcile = `
		SELECT u.balance::text, u.opening_balance::text,
		       COALESCE(SUM(t.delta), 0)::text, COUNT(t.id)
		FROM users u
		LEFT JOIN transactions t ON t.user_id = u.id
		WHERE u.id = $1 AND u.active
		GROUP BY u.id, u.balance, u.opening_balance`

	// Transaction queries
	transactionColumns = `id, reference, user_id, kind, related_id, amount::text, delta::text, balance_after::text, details, status, created_at`

	queryInsertTransaction = `
		INSERT INTO transactions (reference, user_id, kind, related_id, amount, delta, balance_after, details, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + transactionColumns

	queryGetTransactionHistory = `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = $1 AND kind <> 'adjustment'
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	// Product queries
	productColumns = `id, name, description, category, price::text, weight::text, status, impact_score::text, producer_id, created_at, updated_at`

	queryInsertProduct = `
		INSERT INTO products (name, description, category, price, weight, status, impact_score, producer_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + productColumns

	queryGetProduct = `
		SELECT ` + productColumns + ` FROM products WHERE id = $1`

	queryListProductsByProducer = `
		SELECT ` + productColumns + ` FROM products WHERE producer_id = $1 ORDER BY id`

	queryListAvailableProducts = `
		SELECT ` + productColumns + ` FROM products WHERE status = 'available' ORDER BY id`

	queryUpdateProduct = `
		UPDATE products SET
			name = COALESCE($3, name),
			description = COALESCE($4, description),
			category = COALESCE($5, category),
			price = COALESCE($6::numeric, price),
			weight = COALESCE($7::numeric, weight),
			status = COALESCE($8, status),
			impact_score = COALESCE($9::numeric, impact_score),
			updated_at = now()
		WHERE id = $1 AND producer_id = $2
		RETURNING ` + productColumns

	queryDeleteProduct = `
		DELETE FROM products WHERE id = $1 AND producer_id = $2`

	// Order queries
	orderColumns = `id, quantity, total_price::text, status, consumer_id, product_id, payment_reference, created_at`

	queryInsertOrder = `
		INSERT INTO orders (quantity, total_price, status, consumer_id, product_id, payment_reference)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + orderColumns

	queryUpdateOrderStatus = `
		UPDATE orders SET status = $1, payment_reference = $2
		WHERE id = $3
		RETURNING ` + orderColumns

	queryListOrdersByConsumer = `
		SELECT ` + orderColumns + ` FROM orders WHERE consumer_id = $1 ORDER BY id`

	// Recycle request queries
	recycleColumns = `id, item_description, weight::text, category, status, consumer_id, recycler_id, created_at, processed_at`

	queryInsertRecycleRequest = `
		INSERT INTO recycle_requests (item_description, weight, category, status, consumer_id)
		VALUES ($1, $2, $3, 'submitted', $4)
		RETURNING ` + recycleColumns

	queryGetRecycleRequest = `
		SELECT ` + recycleColumns + ` FROM recycle_requests WHERE id = $1`

	queryListRecycleByStatus = `
		SELECT ` + recycleColumns + ` FROM recycle_requests WHERE status = $1 ORDER BY id`

	queryListRecycleByConsumer = `
		SELECT ` + recycleColumns + ` FROM recycle_requests WHERE consumer_id = $1 ORDER BY id`

	queryListRecycleByRecycler = `
		SELECT ` + recycleColumns + ` FROM recycle_requests WHERE recycler_id = $1 ORDER BY id`

	queryAcceptRecycleRequest = `
		UPDATE recycle_requests SET status = 'accepted', recycler_id = $1
		WHERE id = $2 AND status = 'submitted'
		RETURNING ` + recycleColumns

	queryCompleteRecycleRequest = `
		UPDATE recycle_requests SET status = 'completed', processed_at = now()
		WHERE id = $1 AND recycler_id = $2 AND status IN ('accepted', 'in_process')
		RETURNING ` + recycleColumns

	// Raw material queries
	materialColumns = `id, name, material_type, quantity::text, price_per_kg::text, status, recycler_id, recycle_request_id, created_at`

	queryInsertMaterial = `
		INSERT INTO raw_materials (name, material_type, quantity, price_per_kg, status, recycler_id, recycle_request_id)
		VALUES ($1, $2, $3, $4, 'available', $5, $6)
		RETURNING ` + materialColumns

	queryGetMaterial = `
		SELECT ` + materialColumns + ` FROM raw_materials WHERE id = $1`

	queryListAvailableMaterials = `
		SELECT ` + materialColumns + ` FROM raw_materials WHERE status = 'available' ORDER BY id`

	queryListMaterialsByRecycler = `
		SELECT ` + materialColumns + ` FROM raw_materials WHERE recycler_id = $1 ORDER BY id`

	queryReserveMaterial = `
		UPDATE raw_materials
		SET quantity = quantity - $1,
		    status = CASE WHEN quantity - $1 <= 0 THEN 'sold' ELSE status END
		WHERE id = $2 AND status = 'available' AND quantity >= $1
		RETURNING ` + materialColumns

	queryRestoreMaterial = `
		UPDATE raw_materials
		SET quantity = quantity + $1,
		    status = CASE WHEN status = 'sold' THEN 'available' ELSE status END
		WHERE id = $2`

	queryInsertMaterialPurchase = `
		INSERT INTO material_purchases (quantity, total_price, producer_id, material_id, payment_reference)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, quantity::text, total_price::text, producer_id, material_id, payment_reference, created_at`

	// Reporting queries
	queryOverallImpact = `
		SELECT
			(SELECT COUNT(*) FROM products),
			(SELECT COUNT(*) FROM orders),
			(SELECT COUNT(*) FROM recycle_requests),
			(SELECT COALESCE(SUM(impact_score), 0)::text FROM products)`

	queryImpactByCategory = `
		SELECT category, SUM(impact_score)::text, COUNT(*)
		FROM products
		GROUP BY category
		ORDER BY category`
)
