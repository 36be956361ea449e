/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

const (
	// User queries
	userColumns = `id, email, name, password_hash, role, balance, opening_balance, version, created_at, updated_at`

	queryGetActiveUsers = `
		SELECT ` + userColumns + `
		FROM users
		WHERE active = 1
		ORDER BY created_at, id`

	queryInsertUser = `
		INSERT OR IGNORE INTO users (id, email, name, password_hash, role, balance, opening_balance, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`

	queryGetUserById = `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = ? AND active = 1`

	queryGetUserByEmail = `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = ? AND active = 1`

	// Balance queries
	queryGetUserBalance = `
		SELECT balance, version
		FROM users
		WHERE id = ? AND active = 1`

	queryUpdateUserBalance = `
		UPDATE users
		SET balance = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`

	queryGetOpeningBalance = `
		SELECT balance, opening_balance
		FROM users
		WHERE id = ? AND active = 1`

	queryGetLedgerDeltas = `
		SELECT delta
		FROM transactions
		WHERE user_id = ?`

	// Transaction queries
	transactionColumns = `id, reference, user_id, kind, related_id, amount, delta, balance_after, details, status, created_at`

	queryInsertTransaction = `
		INSERT INTO transactions (reference, user_id, kind, related_id, amount, delta, balance_after, details, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING ` + transactionColumns

	queryGetTransactionHistory = `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = ? AND kind <> 'adjustment'
		ORDER BY created_at DESC, id DESC
		LIMIT ?`

	// Product queries
	productColumns = `id, name, description, category, price, weight, status, impact_score, producer_id, created_at, updated_at`

	queryInsertProduct = `
		INSERT INTO products (name, description, category, price, weight, status, impact_score, producer_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING ` + productColumns

	queryGetProduct = `
		SELECT ` + productColumns + ` FROM products WHERE id = ?`

	queryListProductsByProducer = `
		SELECT ` + productColumns + ` FROM products WHERE producer_id = ? ORDER BY id`

	queryListAvailableProducts = `
		SELECT ` + productColumns + ` FROM products WHERE status = 'available' ORDER BY id`

	queryUpdateProduct = `
		UPDATE products
		SET name = ?, description = ?, category = ?, price = ?, weight = ?, status = ?, impact_score = ?, updated_at = ?
		WHERE id = ? AND producer_id = ?
		RETURNING ` + productColumns

	queryDeleteProduct = `
		DELETE FROM products WHERE id = ? AND producer_id = ?`

	// Order queries
	orderColumns = `id, quantity, total_price, status, consumer_id, product_id, payment_reference, created_at`

	queryInsertOrder = `
		INSERT INTO orders (quantity, total_price, status, consumer_id, product_id, payment_reference, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING ` + orderColumns

	queryUpdateOrderStatus = `
		UPDATE orders SET status = ?, payment_reference = ?
		WHERE id = ?
		RETURNING ` + orderColumns

	queryListOrdersByConsumer = `
		SELECT ` + orderColumns + ` FROM orders WHERE consumer_id = ? ORDER BY id`

	// Recycle request queries
	recycleColumns = `id, item_description, weight, category, status, consumer_id, recycler_id, created_at, processed_at`

	queryInsertRecycleRequest = `
		INSERT INTO recycle_requests (item_description, weight, category, status, consumer_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING ` + recycleColumns

	queryGetRecycleRequest = `
		SELECT ` + recycleColumns + ` FROM recycle_requests WHERE id = ?`

	queryListRecycleByStatus = `
		SELECT ` + recycleColumns + ` FROM recycle_requests WHERE status = ? ORDER BY id`

	queryListRecycleByConsumer = `
		SELECT ` + recycleColumns + ` FROM recycle_requests WHERE consumer_id = ? ORDER BY id`

	queryListRecycleByRecycler = `
		SELECT ` + recycleColumns + ` FROM recycle_requests WHERE recycler_id = ? ORDER BY id`

	queryAcceptRecycleRequest = `
		UPDATE recycle_requests SET status = 'accepted', recycler_id = ?
		WHERE id = ? AND status = 'submitted'
		RETURNING ` + recycleColumns

	queryCompleteRecycleRequest = `
		UPDATE recycle_requests SET status = 'completed', processed_at = ?
		WHERE id = ? AND recycler_id = ? AND status IN ('accepted', 'in_process')
		RETURNING ` + recycleColumns

	// Raw material queries
	materialColumns = `id, name, material_type, quantity, price_per_kg, status, recycler_id, recycle_request_id, created_at`

	queryInsertMaterial = `
		INSERT INTO raw_materials (name, material_type, quantity, price_per_kg, status, recycler_id, recycle_request_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING ` + materialColumns

	queryGetMaterial = `
		SELECT ` + materialColumns + ` FROM raw_materials WHERE id = ?`

	queryListAvailableMaterials = `
		SELECT ` + materialColumns + ` FROM raw_materials WHERE status = 'available' ORDER BY id`

	queryListMaterialsByRecycler = `
		SELECT ` + materialColumns + ` FROM raw_materials WHERE recycler_id = ? ORDER BY id`

	queryUpdateMaterialStock = `
		UPDATE raw_materials SET quantity = ?, status = ?
		WHERE id = ?`

	queryInsertMaterialPurchase = `
		INSERT INTO material_purchases (quantity, total_price, producer_id, material_id, payment_reference, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id, quantity, total_price, producer_id, material_id, payment_reference, created_at`

	// Reporting queries
	queryCountProducts        = `SELECT COUNT(*) FROM products`
	queryCountOrders          = `SELECT COUNT(*) FROM orders`
	queryCountRecycleRequests = `SELECT COUNT(*) FROM recycle_requests`
	queryProductImpacts       = `SELECT category, impact_score FROM products ORDER BY category`
)
